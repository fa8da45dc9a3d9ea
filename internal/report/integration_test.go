package report_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/shopspring/decimal"

	"github.com/zombor/dsr-tracker/internal/geometry"
	"github.com/zombor/dsr-tracker/internal/metrics"
	"github.com/zombor/dsr-tracker/internal/recognition"
	"github.com/zombor/dsr-tracker/internal/report"
	"github.com/zombor/dsr-tracker/internal/scan"
)

// lineRecognizer reports each entry of lines as one row of words
type lineRecognizer struct {
	lines []string
}

func (l *lineRecognizer) Recognize(ctx context.Context, img recognition.Image) ([]recognition.Observation, error) {
	var obs []recognition.Observation
	for i, line := range l.lines {
		for j, word := range strings.Fields(line) {
			obs = append(obs, recognition.Observation{
				Candidates: []string{word},
				Box: geometry.UnitRect{
					MinX:   0.1 + float64(j)*0.25,
					MinY:   0.9 - float64(i+1)*0.04,
					Width:  0.2,
					Height: 0.02,
				},
			})
		}
	}
	return obs, nil
}

func (l *lineRecognizer) Close() error { return nil }

var _ = Describe("Integration", func() {
	var (
		tempDir    string
		db         report.DB
		store      report.Storage
		recognizer *lineRecognizer
		recorder   *metrics.Recorder
		session    *scan.Session
		server     *report.Server
		ghServer   *ghttp.Server
		err        error
	)

	upload := func() *http.Response {
		img := image.NewGray(image.Rect(0, 0, 300, 600))
		var pngData bytes.Buffer
		Expect(png.Encode(&pngData, img)).To(Succeed())

		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "dsr.png")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(pngData.Bytes())
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp, err := http.Post(ghServer.URL()+"/api/scans", writer.FormDataContentType(), body)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()

		db, err = report.NewBoltDB(filepath.Join(tempDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())

		store, err = report.NewLocalStorage(filepath.Join(tempDir, "images"))
		Expect(err).NotTo(HaveOccurred())

		recognizer = &lineRecognizer{lines: []string{
			"Sales By Order Type",
			"Eat In", "Visa", "Debit", "Cash", "$400.00", "$300.00", "$430.00",
			"HST 5%", "Total Taxes", "Net", "$50.00", "$130.00", "$1,000.00",
		}}
		recorder = metrics.NewRecorder()
		ghServer = ghttp.NewServer()
	})

	JustBeforeEach(func() {
		session = scan.NewSession(recognizer, scan.Config{
			Deadline:         5 * time.Second,
			BalanceTolerance: decimal.NewFromInt(1),
		}, scan.WithObserver(recorder.ObserveScan))
		server = report.NewServer(report.NewService(db, session, store), report.BasicAuth{}, recorder.Handler())
	})

	AfterEach(func() {
		ghServer.Close()
		session.Close()
		db.Close()
	})

	It("scans an upload into a stored, printable report", func() {
		ghServer.AppendHandlers(server.ServeHTTP, server.ServeHTTP, server.ServeHTTP, server.ServeHTTP)

		resp := upload()
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var record report.Record
		respBody, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(respBody, &record)).To(Succeed())
		Expect(record.State).To(Equal(scan.Ready))
		Expect(record.Report.TotalA.StringFixed(2)).To(Equal("1130.00"))
		Expect(record.Report.TotalB.StringFixed(2)).To(Equal("1130.00"))
		Expect(record.RawText).To(HavePrefix("Sales By Order Type\nEat In\nVisa"))

		receiptResp, err := http.Get(ghServer.URL() + "/api/reports/" + record.ID + "/receipt")
		Expect(err).NotTo(HaveOccurred())
		defer receiptResp.Body.Close()
		receipt, err := io.ReadAll(receiptResp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(receipt)).To(ContainSubstring("DEBIT CARD                    $ 300.00"))
		Expect(string(receipt)).To(ContainSubstring("BANK DEPOSIT                  $ 430.00"))
		Expect(string(receipt)).To(ContainSubstring("CASH DIFFERENCE               $   0.00"))

		imageResp, err := http.Get(ghServer.URL() + "/api/reports/" + record.ID + "/image")
		Expect(err).NotTo(HaveOccurred())
		defer imageResp.Body.Close()
		Expect(imageResp.StatusCode).To(Equal(http.StatusOK))
		Expect(imageResp.Header.Get("Content-Type")).To(Equal("image/png"))

		metricsResp, err := http.Get(ghServer.URL() + "/metrics")
		Expect(err).NotTo(HaveOccurred())
		defer metricsResp.Body.Close()
		exposition, err := io.ReadAll(metricsResp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(exposition)).To(MatchRegexp(`dsr_tracker_scans_total\{[^}]*state="ready"\} 1`))
	})

	It("stores unbalanced scans as rejected", func() {
		recognizer.lines[7] = "$100.00"
		ghServer.AppendHandlers(server.ServeHTTP, server.ServeHTTP)

		resp := upload()
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))

		listResp, err := http.Get(ghServer.URL() + "/api/reports")
		Expect(err).NotTo(HaveOccurred())
		defer listResp.Body.Close()
		var records []*report.Record
		body, err := io.ReadAll(listResp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(body, &records)).To(Succeed())
		Expect(records).To(HaveLen(1))
		Expect(records[0].Reason).To(Equal(scan.ReasonUnbalanced))
		Expect(records[0].Report.CashDifference.StringFixed(2)).To(Equal("-330.00"))
	})
})
