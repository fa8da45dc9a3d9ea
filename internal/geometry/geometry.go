// Package geometry converts recognizer bounding boxes between the
// recognizer's unit-square space and image pixel space.
package geometry

// UnitRect is a bounding box normalized to the unit square with its origin at
// the bottom-left corner of the image.
type UnitRect struct {
	MinX   float64 `json:"min_x"`
	MinY   float64 `json:"min_y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MaxY returns the top edge of the box.
func (u UnitRect) MaxY() float64 {
	return u.MinY + u.Height
}

// Rect is a pixel-space rectangle with its origin at the top-left corner of
// the image.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MinX returns the left edge.
func (r Rect) MinX() float64 { return r.X }

// MidY returns the vertical center.
func (r Rect) MidY() float64 { return r.Y + r.Height/2 }

// ToPixel maps a unit-square box onto an image of the given pixel size.
// Out-of-range inputs are scaled as-is.
func ToPixel(u UnitRect, width, height float64) Rect {
	return Rect{
		X:      u.MinX * width,
		Y:      (1 - u.MaxY()) * height,
		Width:  u.Width * width,
		Height: u.Height * height,
	}
}

// FromPixel is the inverse of ToPixel. Recognizers that report top-left
// pixel boxes use it to meet the unit-square contract.
func FromPixel(r Rect, width, height float64) UnitRect {
	if width == 0 || height == 0 {
		return UnitRect{}
	}
	return UnitRect{
		MinX:   r.X / width,
		MinY:   1 - (r.Y+r.Height)/height,
		Width:  r.Width / width,
		Height: r.Height / height,
	}
}
