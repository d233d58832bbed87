package models

// Color identifies a side of the board. The short "w"/"b" forms are the
// canonical wire values.
type Color string

const (
	ColorWhite Color = "w"
	ColorBlack Color = "b"
)

// Other returns the opposing color.
func (c Color) Other() Color {
	if c == ColorWhite {
		return ColorBlack
	}
	return ColorWhite
}
