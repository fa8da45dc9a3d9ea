package recognition

import (
	"context"

	"github.com/zombor/dsr-tracker/internal/geometry"
)

// Image is a captured receipt ready for recognition: PNG data plus its pixel
// size.
type Image struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Observation is one detected word. Candidates are ordered best first; Box is
// in unit-square space with the origin at the bottom-left.
type Observation struct {
	Candidates []string
	Box        geometry.UnitRect
}

// Best returns the top candidate, or "" when there is none.
func (o Observation) Best() string {
	if len(o.Candidates) == 0 {
		return ""
	}
	return o.Candidates[0]
}

// Recognizer defines the interface for text recognition engines
type Recognizer interface {
	// Recognize detects the words in an image
	Recognize(ctx context.Context, img Image) ([]Observation, error)
	// Close releases engine resources
	Close() error
}
