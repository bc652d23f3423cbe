package annotate

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"DetectorWeb/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whiteImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func isGreen(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return g>>8 > 200 && r>>8 < 80 && b>>8 < 80
}

func TestScaleBox(t *testing.T) {
	rect, ok := ScaleBox([]float64{0.1, 0.2, 0.5, 0.6}, 1000, 500)
	require.True(t, ok)
	assert.Equal(t, image.Rect(200, 50, 600, 250), rect)

	rect, ok = ScaleBox([]float64{-0.1, -0.2, 1.2, 1.5}, 100, 50)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 99, 49), rect)

	rect, ok = ScaleBox([]float64{0.8, 0.9, 0.2, 0.1}, 100, 100)
	require.True(t, ok)
	assert.Equal(t, image.Rect(10, 20, 90, 80), rect)

	_, ok = ScaleBox([]float64{0.1, 0.2}, 100, 100)
	assert.False(t, ok)

	_, ok = ScaleBox([]float64{0.1, 0.2, 0.3, 0.4}, 0, 100)
	assert.False(t, ok)
}

func TestParseStyle(t *testing.T) {
	s, err := ParseStyle("")
	require.NoError(t, err)
	assert.Equal(t, StyleFilled, s)

	s, err = ParseStyle("outlined")
	require.NoError(t, err)
	assert.Equal(t, StyleOutlined, s)

	_, err = ParseStyle("neon")
	assert.Error(t, err)
}

func TestDrawFilled(t *testing.T) {
	a, err := New(StyleFilled, DefaultFontSize)
	require.NoError(t, err)

	src := whiteImage(200, 100)
	out, drawn := a.Draw(src, []entity.Detection{
		{Label: "cat", Probability: 0.9, Box: []float64{0.2, 0.2, 0.8, 0.8}},
	})

	assert.Equal(t, 1, drawn)
	assert.Equal(t, src.Bounds(), out.Bounds())

	// left edge of the box, below the label tag
	assert.True(t, isGreen(out.At(40, 75)), "box edge should be green, got %v", out.At(40, 75))
	// right edge
	assert.True(t, isGreen(out.At(160, 60)), "box edge should be green, got %v", out.At(160, 60))
	// label tag background just inside the top-left corner
	assert.True(t, isGreen(out.At(42, 22)), "tag should be green, got %v", out.At(42, 22))
	// centre of the box is untouched
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, color.RGBAModel.Convert(out.At(120, 70)))

	// source is not modified
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, src.RGBAAt(40, 75))
}

func TestDrawOutlined(t *testing.T) {
	a, err := New(StyleOutlined, DefaultFontSize)
	require.NoError(t, err)

	out, drawn := a.Draw(whiteImage(200, 100), []entity.Detection{
		{Label: "dog", Box: []float64{0.3, 0.25, 0.9, 0.75}},
	})

	assert.Equal(t, 1, drawn)
	assert.True(t, isGreen(out.At(50, 60)), "box edge should be green, got %v", out.At(50, 60))
	// no filled tag inside the box in this style
	assert.False(t, isGreen(out.At(55, 35)))
}

func TestDrawSkipsMalformedBoxes(t *testing.T) {
	a, err := New(StyleFilled, 0)
	require.NoError(t, err)

	src := whiteImage(50, 50)
	out, drawn := a.Draw(src, []entity.Detection{
		{Label: "broken", Box: []float64{0.1}},
		{Label: "missing"},
	})

	assert.Equal(t, 0, drawn)
	for y := 0; y < 50; y += 7 {
		for x := 0; x < 50; x += 7 {
			assert.Equal(t, color.RGBA{255, 255, 255, 255}, color.RGBAModel.Convert(out.At(x, y)))
		}
	}
}
