package annotate

import (
	"fmt"
	"image"
	"image/color"

	"DetectorWeb/internal/entity"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

type Style string

const (
	// StyleFilled draws the label in black on a green tag at the top-left corner of the box.
	StyleFilled Style = "filled"
	// StyleOutlined draws the label just above the box, black over a white halo.
	StyleOutlined Style = "outlined"
)

const (
	DefaultFontSize = 18
	lineWidth       = 2
	tagHeightRatio  = 1.4
	outlineOffset   = 5
)

var (
	boxColor   = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	textColor  = color.Black
	outlineRGB = color.White
)

func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case StyleFilled, StyleOutlined:
		return Style(s), nil
	case "":
		return StyleFilled, nil
	default:
		return "", fmt.Errorf("unknown draw style %q", s)
	}
}

type IAnnotator interface {
	Draw(img image.Image, detections []entity.Detection) (image.Image, int)
}

type annotator struct {
	style    Style
	font     *truetype.Font
	fontSize float64
}

func New(style Style, fontSize float64) (IAnnotator, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	if fontSize <= 0 {
		fontSize = DefaultFontSize
	}
	if style == "" {
		style = StyleFilled
	}

	return &annotator{
		style:    style,
		font:     f,
		fontSize: fontSize,
	}, nil
}

// ScaleBox converts a normalized ymin, xmin, ymax, xmax box to pixel space
// and clamps it into a w x h image. ok is false for malformed boxes.
func ScaleBox(box []float64, w, h int) (rect image.Rectangle, ok bool) {
	if len(box) < 4 || w <= 0 || h <= 0 {
		return image.Rectangle{}, false
	}

	ymin, xmin, ymax, xmax := box[0], box[1], box[2], box[3]
	left := clamp(int(xmin*float64(w)), 0, w-1)
	right := clamp(int(xmax*float64(w)), 0, w-1)
	top := clamp(int(ymin*float64(h)), 0, h-1)
	bottom := clamp(int(ymax*float64(h)), 0, h-1)

	return image.Rect(left, top, right, bottom), true
}

// Draw returns a copy of img with one rectangle and one label per detection,
// along with the number of boxes drawn.
func (a *annotator) Draw(img image.Image, detections []entity.Detection) (image.Image, int) {
	dc := gg.NewContextForImage(img)
	// Faces keep a glyph cache and are not safe to share between requests.
	dc.SetFontFace(truetype.NewFace(a.font, &truetype.Options{Size: a.fontSize}))
	dc.SetLineWidth(lineWidth)

	bounds := img.Bounds()
	drawn := 0
	for _, d := range detections {
		rect, ok := ScaleBox(d.Box, bounds.Dx(), bounds.Dy())
		if !ok {
			continue
		}

		dc.SetColor(boxColor)
		dc.DrawRectangle(float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()))
		dc.Stroke()

		switch a.style {
		case StyleOutlined:
			a.drawOutlinedLabel(dc, d.Label, rect)
		default:
			a.drawFilledLabel(dc, d.Label, rect)
		}
		drawn++
	}

	return dc.Image(), drawn
}

func (a *annotator) drawFilledLabel(dc *gg.Context, label string, rect image.Rectangle) {
	if label == "" {
		return
	}
	left, top := float64(rect.Min.X), float64(rect.Min.Y)
	tw, th := dc.MeasureString(label)

	dc.SetColor(boxColor)
	dc.DrawRectangle(left, top, tw, float64(int(th*tagHeightRatio)))
	dc.Fill()

	dc.SetColor(textColor)
	dc.DrawString(label, left, top+th)
}

func (a *annotator) drawOutlinedLabel(dc *gg.Context, label string, rect image.Rectangle) {
	if label == "" {
		return
	}
	x := float64(rect.Min.X - outlineOffset)
	y := float64(rect.Min.Y - outlineOffset)

	dc.SetColor(outlineRGB)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			dc.DrawString(label, x+float64(dx), y+float64(dy))
		}
	}

	dc.SetColor(textColor)
	dc.DrawString(label, x, y)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
