package recognition

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zombor/dsr-tracker/internal/geometry"
)

// boxScale is the coordinate range vision models report boxes in
const boxScale = 1000

const wordBoxPrompt = `Read every word printed on this point-of-sale report.

Return ONLY a JSON array, one element per word, in any order:
[{"text": "VISA", "box_2d": [ymin, xmin, ymax, xmax]}]

- "text" is the word exactly as printed, including $ signs, commas, parentheses and minus signs.
- "box_2d" is the word's bounding box with coordinates normalized to 0-1000, origin at the top-left of the image.
- Keep dollar amounts such as "$1,234.56" or "($0.45)" as a single word.
- Do not merge words that are separated by whitespace on the page.
- Do not add explanations or markdown.`

const wordBoxSystemPrompt = "You are an OCR engine. You transcribe printed text exactly and report where each word sits on the page."

// wordBox is one word as reported by a vision model
type wordBox struct {
	Text  string     `json:"text"`
	Box2D [4]float64 `json:"box_2d"`
}

// parseWordsJSON parses a vision model's word list into observations
func parseWordsJSON(text string) ([]Observation, error) {
	text = strings.TrimSpace(text)

	// Remove opening markdown code blocks
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON array boundaries - look for first [ and last ]
	startIdx := strings.Index(text, "[")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	endIdx := strings.LastIndex(text, "]")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON array in response")
	}

	text = text[startIdx : endIdx+1]

	var words []wordBox
	if err := json.Unmarshal([]byte(text), &words); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	observations := make([]Observation, 0, len(words))
	for _, w := range words {
		word := strings.TrimSpace(w.Text)
		if word == "" {
			continue
		}
		ymin, xmin, ymax, xmax := w.Box2D[0], w.Box2D[1], w.Box2D[2], w.Box2D[3]
		if xmax < xmin {
			xmin, xmax = xmax, xmin
		}
		if ymax < ymin {
			ymin, ymax = ymax, ymin
		}
		observations = append(observations, Observation{
			Candidates: []string{word},
			Box: geometry.FromPixel(geometry.Rect{
				X:      xmin,
				Y:      ymin,
				Width:  xmax - xmin,
				Height: ymax - ymin,
			}, boxScale, boxScale),
		})
	}

	return observations, nil
}
