package scene

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ddvk/psdscene/psd"
	"github.com/ddvk/psdscene/psd/psdtest"
)

var (
	white = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	green = color.NRGBA{G: 0xff, A: 0xff}
	blue  = color.NRGBA{B: 0xff, A: 0xff}
	red   = color.NRGBA{R: 0xff, A: 0xff}
)

func titleText(value string) *psdtest.Text {
	return &psdtest.Text{
		Value:     value,
		Transform: psd.Transform{XX: 0.5, YY: 0.5, TX: 1, TY: 1},
		Engine: psdtest.Engine{
			Text:          value,
			Fonts:         []string{"NoSuchFont-Regular"},
			Justification: []int{0},
			Runs: []psdtest.Style{
				{FontSize: 24, FontCaps: psd.FontCapsAll, SetColor: true, Color: [4]float64{1, 1, 0, 0}},
			},
		},
	}
}

// sceneDocument is a 20x10 canvas, listed top first:
// title (text), photo (clipped to frame), frame, hidden, background
func sceneDocument() psdtest.Document {
	full := image.Rect(0, 0, 20, 10)
	frame := image.Rect(0, 0, 10, 10)
	photo := image.Rect(2, 2, 6, 6)
	return psdtest.Document{
		Width:  20,
		Height: 10,
		Layers: []psdtest.Layer{
			{Name: "title", Rect: image.Rect(1, 1, 19, 6), Text: titleText("Hello")},
			{Name: "photo", Rect: photo, Pixels: psdtest.Fill(photo, blue), Clipping: true, Compression: psd.CompressionRLE},
			{Name: "frame", Rect: frame, Pixels: psdtest.Fill(frame, green), Compression: psd.CompressionZIP},
			{Name: "hidden", Rect: frame, Pixels: psdtest.Fill(frame, red), Hidden: true},
			{Name: "background", Rect: full, Pixels: psdtest.Fill(full, white)},
		},
	}
}

func decodeFixture(t *testing.T, doc psdtest.Document) *psd.File {
	t.Helper()
	file, err := psd.DecodeBytes(psdtest.Build(doc))
	require.NoError(t, err)
	return file
}

func compileFixture(t *testing.T, doc psdtest.Document) *Compiled {
	t.Helper()
	c, err := Compile(context.Background(), decodeFixture(t, doc))
	require.NoError(t, err)
	return c
}

func loadSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession(NewFontResolver(nil, false))
	require.NoError(t, s.Load(context.Background(), bytes.NewReader(psdtest.Build(sceneDocument()))))
	return s
}

func pngDataURL(t *testing.T, img image.Image) string {
	t.Helper()
	value, err := EncodeDataURL(img)
	require.NoError(t, err)
	return value
}

func nodeByName(nodes []Node, name string) Node {
	for _, n := range nodes {
		if n.Attrs().Name == name {
			return n
		}
	}
	return nil
}
