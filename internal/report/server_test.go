package report

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/dsr-tracker/internal/scan"
)

// uploadBody builds a multipart body with a single "file" part
func uploadBody(filename string, data []byte) (*bytes.Buffer, string) {
	var b bytes.Buffer
	writer := multipart.NewWriter(&b)
	part, err := writer.CreateFormFile("file", filename)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())
	return &b, writer.FormDataContentType()
}

func readBody(resp *http.Response) string {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return string(body)
}

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		scanner     *mockScanner
		service     *Service
		server      *Server
		auth        BasicAuth
		metrics     http.Handler
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		scanner = newMockScanner()
		auth = BasicAuth{}
		metrics = nil
	})

	JustBeforeEach(func() {
		service = NewService(db, scanner, storage)
		server = NewServerWithMux(service, auth, metrics, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AllowUnhandledRequests = false
		ghttpServer.AppendHandlers(server.Handler().ServeHTTP)
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	Describe("POST /api/scans", func() {
		var resp *http.Response

		post := func(filename string, data []byte) {
			body, contentType := uploadBody(filename, data)
			var err error
			resp, err = http.Post(ghttpServer.URL()+"/api/scans", contentType, body)
			Expect(err).NotTo(HaveOccurred())
		}

		When("the scan is ready", func() {
			JustBeforeEach(func() {
				post("dsr.png", pngBytes())
			})

			It("should return status Created with the record", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

				var record Record
				Expect(json.Unmarshal([]byte(readBody(resp)), &record)).To(Succeed())
				Expect(record.ID).NotTo(BeEmpty())
				Expect(record.State).To(Equal(scan.Ready))
				Expect(record.Report.NetSales.StringFixed(2)).To(Equal("1000.00"))
			})

			It("should set CORS headers", func() {
				resp.Body.Close()
				Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
			})

			It("should detect the content type from the extension", func() {
				resp.Body.Close()
				Expect(db.records).To(HaveLen(1))
				for _, r := range db.records {
					Expect(r.ContentType).To(Equal("image/png"))
				}
			})
		})

		When("the scan is rejected", func() {
			BeforeEach(func() {
				scanner.outcome = scan.Outcome{Generation: 1, State: scan.Rejected, Reason: scan.ReasonUnbalanced}
			})

			JustBeforeEach(func() {
				post("dsr.png", pngBytes())
			})

			It("should return status Unprocessable Entity with the record", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				Expect(readBody(resp)).To(ContainSubstring(`"reason":"unbalanced"`))
			})
		})

		When("the upload is not an image", func() {
			JustBeforeEach(func() {
				post("dsr.jpg", []byte("fake image data"))
			})

			It("should return status Bad Request", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(readBody(resp)).To(ContainSubstring("invalid image"))
			})
		})

		When("a newer capture supersedes the scan", func() {
			BeforeEach(func() {
				scanner.scanErr = scan.ErrSuperseded
			})

			JustBeforeEach(func() {
				post("dsr.png", pngBytes())
			})

			It("should return status Conflict", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusConflict))
				resp.Body.Close()
			})
		})

		When("recognition fails", func() {
			BeforeEach(func() {
				scanner.outcome = scan.Outcome{State: scan.Failed, Err: &scan.RecognitionError{Err: errors.New("ocr crashed")}}
			})

			JustBeforeEach(func() {
				post("dsr.png", pngBytes())
			})

			It("should return status Bad Gateway", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
				Expect(readBody(resp)).To(ContainSubstring("ocr crashed"))
			})
		})

		When("recognition times out", func() {
			BeforeEach(func() {
				scanner.outcome = scan.Outcome{State: scan.TimedOut, Err: scan.ErrTimeout}
			})

			JustBeforeEach(func() {
				post("dsr.png", pngBytes())
			})

			It("should return status Gateway Timeout", func() {
				Expect(resp.StatusCode).To(Equal(http.StatusGatewayTimeout))
				resp.Body.Close()
			})
		})

		When("no file is provided", func() {
			It("should return status Bad Request", func() {
				var b bytes.Buffer
				writer := multipart.NewWriter(&b)
				Expect(writer.WriteField("note", "no file")).To(Succeed())
				Expect(writer.Close()).To(Succeed())

				resp, err := http.Post(ghttpServer.URL()+"/api/scans", writer.FormDataContentType(), &b)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(readBody(resp)).To(ContainSubstring("No file was selected"))
			})
		})
	})

	Describe("GET /api/reports", func() {
		When("records exist", func() {
			BeforeEach(func() {
				db.records["id1"] = &Record{ID: "id1"}
				db.records["id2"] = &Record{ID: "id2"}
			})

			It("should return all records", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/reports")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var records []*Record
				Expect(json.Unmarshal([]byte(readBody(resp)), &records)).To(Succeed())
				Expect(records).To(HaveLen(2))
			})
		})

		When("no records exist", func() {
			It("should return an empty array", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/reports")
				Expect(err).NotTo(HaveOccurred())
				Expect(readBody(resp)).To(Equal("[]\n"))
			})
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.listErr = errors.New("service error")
			})

			It("should return status Internal Server Error", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/reports")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				Expect(readBody(resp)).To(ContainSubstring("Internal server error"))
			})
		})
	})

	Describe("GET /api/reports/{id}", func() {
		BeforeEach(func() {
			db.records["abc"] = &Record{ID: "abc", State: scan.Ready}
		})

		It("should return the record", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/reports/abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(readBody(resp)).To(ContainSubstring(`"state":"ready"`))
		})

		It("should return Not Found for unknown records", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/reports/missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})
	})

	Describe("GET /api/reports/{id}/image", func() {
		BeforeEach(func() {
			db.records["abc"] = &Record{ID: "abc", Filename: "abc_dsr.png", ContentType: "image/png"}
			storage.files["abc_dsr.png"] = []byte("png data")
		})

		It("should return the image with its content type", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/reports/abc/image")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			Expect(readBody(resp)).To(Equal("png data"))
		})
	})

	Describe("GET /api/reports/{id}/receipt", func() {
		It("should return the receipt text", func() {
			db.records["abc"] = &Record{ID: "abc", Report: balancedReport()}
			resp, err := http.Get(ghttpServer.URL() + "/api/reports/abc/receipt")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/plain"))
			Expect(readBody(resp)).To(HavePrefix("----------- DAILY SALES REPORT -----------\n"))
		})

		It("should return Conflict when the record has no report", func() {
			db.records["abc"] = &Record{ID: "abc", State: scan.Rejected}
			resp, err := http.Get(ghttpServer.URL() + "/api/reports/abc/receipt")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
			resp.Body.Close()
		})
	})

	Describe("DELETE /api/reports/{id}", func() {
		BeforeEach(func() {
			db.records["abc"] = &Record{ID: "abc", Filename: "abc_dsr.png"}
			storage.files["abc_dsr.png"] = []byte("png data")
		})

		It("should delete the record", func() {
			req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/reports/abc", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			resp.Body.Close()
			Expect(db.records).To(BeEmpty())
		})
	})

	Describe("GET /api/session", func() {
		BeforeEach(func() {
			scanner.outcome = scan.Outcome{Generation: 5, State: scan.TimedOut, Err: scan.ErrTimeout}
		})

		It("should return the current outcome", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/session")
			Expect(err).NotTo(HaveOccurred())
			body := readBody(resp)
			Expect(body).To(ContainSubstring(`"generation":5`))
			Expect(body).To(ContainSubstring(`"state":"timed_out"`))
			Expect(body).To(ContainSubstring(scan.ErrTimeout.Error()))
		})
	})

	Describe("GET /metrics", func() {
		When("a metrics handler is configured", func() {
			BeforeEach(func() {
				metrics = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					io.WriteString(w, "dsr_tracker_scans_total 1\n")
				})
			})

			It("should serve it", func() {
				resp, err := http.Get(ghttpServer.URL() + "/metrics")
				Expect(err).NotTo(HaveOccurred())
				Expect(readBody(resp)).To(ContainSubstring("dsr_tracker_scans_total"))
			})
		})

		When("no metrics handler is configured", func() {
			It("should return Not Found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/metrics")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("OPTIONS preflight", func() {
		It("should answer No Content with CORS headers", func() {
			req, err := http.NewRequest(http.MethodOptions, ghttpServer.URL()+"/api/scans", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("DELETE"))
			resp.Body.Close()
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "manager", Password: "fries"}
		})

		It("should reject requests without credentials", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/reports")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("DSR Tracker"))
			resp.Body.Close()
		})

		It("should reject wrong credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/reports", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("manager:burgers")))
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			resp.Body.Close()
		})

		It("should accept the configured credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/reports", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("manager", "fries")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			resp.Body.Close()
		})
	})
})
