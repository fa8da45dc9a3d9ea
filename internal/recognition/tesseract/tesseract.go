// Package tesseract recognizes receipt words on-device with the Tesseract OCR
// engine.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/zombor/dsr-tracker/internal/geometry"
	"github.com/zombor/dsr-tracker/internal/recognition"
)

// Tesseract implements recognition.Recognizer. Each call uses its own
// client, so concurrent calls are safe.
type Tesseract struct {
	languages []string
}

// New creates a Tesseract recognizer for the given languages, "eng" when
// none are given.
func New(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Tesseract{languages: languages}
}

// Recognize runs word-level OCR over an enhanced copy of the image.
func (t *Tesseract) Recognize(ctx context.Context, img recognition.Image) ([]recognition.Observation, error) {
	enhanced, bounds, err := recognition.Enhance(img)
	if err != nil {
		return nil, fmt.Errorf("enhancing image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return nil, fmt.Errorf("setting language: %w", err)
	}
	if err := client.SetImageFromBytes(enhanced); err != nil {
		return nil, fmt.Errorf("setting image: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("reading word boxes: %w", err)
	}

	width, height := float64(bounds.Dx()), float64(bounds.Dy())
	observations := make([]recognition.Observation, 0, len(boxes))
	for _, b := range boxes {
		word := strings.TrimSpace(b.Word)
		if word == "" {
			continue
		}
		observations = append(observations, recognition.Observation{
			Candidates: []string{word},
			Box: geometry.FromPixel(geometry.Rect{
				X:      float64(b.Box.Min.X - bounds.Min.X),
				Y:      float64(b.Box.Min.Y - bounds.Min.Y),
				Width:  float64(b.Box.Dx()),
				Height: float64(b.Box.Dy()),
			}, width, height),
		})
	}

	return observations, nil
}

// Close is a no-op; clients are released after each call.
func (t *Tesseract) Close() error {
	return nil
}
