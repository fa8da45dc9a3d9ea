package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/dsr-tracker/internal/recognition"
	"github.com/zombor/dsr-tracker/internal/scan"
)

// errNotReady makes the scan command exit non-zero without another message
var errNotReady = errors.New("scan did not produce a balanced report")

func newScanCommand(cfg *rootConfig, parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("scan").SetParent(parent)

	return &ff.Command{
		Name:      "scan",
		Usage:     "dsr-tracker scan [FLAGS] FILE",
		ShortHelp: "Scan one receipt photo and print the daily sales report",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("scan takes exactly one file, got %d: %w", len(args), ff.ErrHelp)
			}
			if err := cfg.setupLogging(); err != nil {
				return err
			}
			scanCfg, err := cfg.scanConfig()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			img, err := recognition.Prepare(data, detectContentType(args[0], data))
			if err != nil {
				return fmt.Errorf("preparing %s: %w", args[0], err)
			}

			recognizer, err := cfg.newRecognizer(ctx)
			if err != nil {
				return err
			}
			defer recognizer.Close()

			session := scan.NewSession(recognizer, scanCfg)
			defer session.Close()

			out, err := session.Scan(ctx, img)
			if err != nil {
				return err
			}

			printOutcome(os.Stdout, out, time.Now())
			if !out.Ready() {
				return errNotReady
			}
			return nil
		},
	}
}

// detectContentType sniffs the file, trusting the extension for formats the
// sniffer does not know
func detectContentType(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	return http.DetectContentType(data)
}

func printOutcome(w io.Writer, out scan.Outcome, now time.Time) {
	fmt.Fprintln(w, "--- Recognized text ---")
	fmt.Fprintln(w, out.RawText)

	fmt.Fprintln(w, "--- Sections ---")
	for _, section := range out.Sections {
		fmt.Fprintln(w, section.Title())
		for _, entry := range section.Entries {
			fmt.Fprintf(w, "  %-24s %10s\n", entry.Label, entry.Amount.StringFixed(2))
		}
	}

	if out.Report != nil {
		fmt.Fprintln(w, "--- Report ---")
		for _, line := range out.Report.Lines(now) {
			fmt.Fprintln(w, line)
		}
	}

	fmt.Fprintf(w, "State: %s", out.State)
	if out.Reason != "" {
		fmt.Fprintf(w, " (%s)", out.Reason)
	}
	if out.Err != nil {
		fmt.Fprintf(w, ": %v", out.Err)
	}
	fmt.Fprintln(w)
}
