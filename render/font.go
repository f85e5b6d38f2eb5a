package render

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

type Alignment int

const (
	Left   Alignment = 1
	Center Alignment = 2
	Right  Alignment = 3
)

// Font defines the parameters for rendering text on an image using GoCV
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
	// Padding to place around text
	LeftPad   int
	RightPad  int
	TopPad    int
	BottomPad int
	// Alignment of the text label to the box anchor point
	Alignment Alignment
}

// DefaultFont returns default font settings
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.4,
		Color:     White,
		Thickness: 1,
		LineType:  gocv.LineAA,
		LeftPad:   3,
		RightPad:  3,
		TopPad:    3,
		BottomPad: 4,
		Alignment: Left,
	}
}

// boxLabel is a text label with its filled background box
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// newBoxLabel lays out the text so it sits above the anchor point, the
// alignment decides if the anchor is the left edge, center or right edge of
// the label
func newBoxLabel(text string, anchor image.Point, clr color.RGBA, font Font) boxLabel {

	textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

	var centerX int

	switch font.Alignment {
	case Center:
		centerX = anchor.X

	case Right:
		centerX = anchor.X - (textSize.X / 2) - font.RightPad

	case Left:
		fallthrough
	default:
		centerX = anchor.X + (textSize.X / 2) + font.LeftPad
	}

	return boxLabel{
		rect: image.Rect(centerX-textSize.X/2-font.LeftPad,
			anchor.Y-textSize.Y-font.TopPad-font.BottomPad,
			centerX+textSize.X/2+font.RightPad, anchor.Y),
		clr:     clr,
		text:    text,
		textPos: image.Pt(centerX-textSize.X/2, anchor.Y-font.BottomPad),
	}
}

// drawLabels draws the labels so they are the top most layer on the image
func drawLabels(img *gocv.Mat, labels []boxLabel, font Font) {
	for _, l := range labels {
		// draw box text gets written on
		gocv.Rectangle(img, l.rect, l.clr, -1)

		gocv.PutTextWithParams(img, l.text, l.textPos,
			font.Face, font.Scale, font.Color, font.Thickness,
			font.LineType, false)
	}
}
