package scene

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddvk/psdscene/psd"
	"github.com/ddvk/psdscene/psd/psdtest"
)

func textFile(t *testing.T, text *psdtest.Text) (*psd.TextRecord, psd.ExportTree) {
	t.Helper()
	file := decodeFixture(t, psdtest.Document{
		Width:  50,
		Height: 50,
		Layers: []psdtest.Layer{{Name: "headline", Rect: image.Rect(0, 0, 40, 20), Text: text}},
	})
	require.Len(t, file.Layers, 1)
	rec, ok := file.Layers[0].(*psd.TextRecord)
	require.True(t, ok)
	return rec, file.Export
}

func TestExtractStyleScaledFontSize(t *testing.T) {
	rec, export := textFile(t, titleText("Hello"))

	style, err := ExtractStyle(rec, export)
	require.NoError(t, err)
	assert.Equal(t, 12, style.FontSizePt)
	assert.True(t, style.Uppercase)
	assert.Equal(t, "HELLO", style.Text)
	assert.Equal(t, "NoSuchFont-Regular", style.FontFamily)
	assert.Equal(t, "rgba(255, 0, 0, 255)", style.Fill())
	assert.Equal(t, "left", style.Alignment)
	assert.False(t, style.Bold)

	again, err := ExtractStyle(rec, export)
	require.NoError(t, err)
	assert.Equal(t, style, again)
}

func TestExtractStyleSecondRun(t *testing.T) {
	rec, export := textFile(t, &psdtest.Text{
		Value:     "Sale",
		Transform: psd.Transform{XX: 1, YY: 1},
		Engine: psdtest.Engine{
			Text:          "Sale",
			Fonts:         []string{"Arial-BoldMT", "AdobeInvisFont"},
			Justification: []int{2, 0},
			Runs: []psdtest.Style{
				{FontSize: 10, SetColor: true, Color: [4]float64{1, 0, 0, 1}},
				{FontSize: 31, FauxBold: true, SetColor: true, Color: [4]float64{0.5, 0, 1, 0}},
			},
		},
	})

	style, err := ExtractStyle(rec, export)
	require.NoError(t, err)
	assert.Equal(t, 31, style.FontSizePt)
	assert.True(t, style.Bold)
	assert.False(t, style.Uppercase)
	assert.Equal(t, "Sale", style.Text)
	assert.Equal(t, color.NRGBA{G: 0xff, A: 0x80}, style.FillColor)
	assert.Equal(t, "Arial-BoldMT, AdobeInvisFont", style.FontFamily)
	assert.Equal(t, "center", style.Alignment)
}

func TestExtractStyleDefaults(t *testing.T) {
	rec, export := textFile(t, &psdtest.Text{
		Value:     "plain",
		Transform: psd.Transform{XX: 2, YY: 2},
		Engine: psdtest.Engine{
			Text:            "plain",
			DefaultFontSize: 9,
			Runs:            []psdtest.Style{{OmitFontSize: true}},
		},
	})

	style, err := ExtractStyle(rec, export)
	require.NoError(t, err)
	assert.Equal(t, 18, style.FontSizePt)
	assert.Equal(t, "rgba(0, 0, 0, 255)", style.Fill())
	assert.Equal(t, "left", style.Alignment)
	assert.Empty(t, style.FontFamily)
}

func TestExtractStyleErrors(t *testing.T) {
	rec, export := textFile(t, titleText("x"))

	_, err := ExtractStyle(rec, psd.ExportTree{})
	var match *LayerMatchError
	require.ErrorAs(t, err, &match)
	assert.Equal(t, "headline", match.Layer)
	assert.ErrorIs(t, err, ErrNoExportEntry)

	rec, export = textFile(t, &psdtest.Text{Value: "x", Transform: psd.Transform{XX: 1}, Engine: psdtest.Engine{Text: "x"}})
	_, err = ExtractStyle(rec, export)
	require.ErrorAs(t, err, &match)
	assert.ErrorIs(t, err, ErrNoStyleRun)
}

func TestFontSize(t *testing.T) {
	assert.Equal(t, 12, FontSize(24, 0.5))
	assert.Equal(t, 13, FontSize(25, 0.5))
	assert.Equal(t, 4, FontSize(7, 0.5))
	for size := 1; size <= 200; size++ {
		assert.Equal(t, size, FontSize(float64(size), 1))
	}
}
