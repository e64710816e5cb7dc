package scene

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddvk/psdscene/psd"
	"github.com/ddvk/psdscene/psd/psdtest"
)

func TestSessionNoDocument(t *testing.T) {
	s := NewSession(nil)
	_, err := s.Document()
	assert.ErrorIs(t, err, ErrNoDocument)
	assert.ErrorIs(t, s.SetField("a", "b"), ErrNoDocument)
	_, err = s.Commit()
	assert.ErrorIs(t, err, ErrNoDocument)
	assert.ErrorIs(t, s.Revert(), ErrNoDocument)
	_, err = s.Export()
	assert.ErrorIs(t, err, ErrNoDocument)
	_, err = s.Preview()
	assert.ErrorIs(t, err, ErrNoDocument)
	assert.Equal(t, 1.0, s.DisplayScale())
}

func TestSessionLoadFormatError(t *testing.T) {
	s := NewSession(nil)
	err := s.Load(context.Background(), bytes.NewReader([]byte("not a document")))
	assert.ErrorIs(t, err, psd.ErrFormat)
	_, err = s.Document()
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestSessionSetField(t *testing.T) {
	s := loadSession(t)
	before := s.Fields()

	var invalid *InvalidFieldValueError
	err := s.SetField("nope", "x")
	require.ErrorAs(t, err, &invalid)
	assert.ErrorIs(t, err, ErrUnknownField)

	err = s.SetField("frame", "data:image/png;base64,@@@")
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "frame", invalid.Label)

	err = s.SetField("title", "bad \xff text")
	assert.ErrorIs(t, err, ErrInvalidText)

	assert.Equal(t, before, s.Fields())
	assert.Empty(t, s.Pending())

	require.NoError(t, s.SetField("title", "bye"))
	assert.Equal(t, map[string]string{"title": "bye"}, s.Pending())
	field, ok := s.Fields().Lookup("title")
	require.True(t, ok)
	assert.Equal(t, "bye", field.Value)

	// nothing is rendered before commit
	title := nodeByName(s.Nodes(), "title").(*TextNode)
	assert.Equal(t, "HELLO", title.Style.Text)
}

func TestSessionCommitAndRevert(t *testing.T) {
	s := loadSession(t)
	compiled := s.Fields()

	require.NoError(t, s.SetField("title", "bye"))
	replacement := pngDataURL(t, psdtest.Fill(image.Rect(0, 0, 2, 2), red))
	require.NoError(t, s.SetField("frame", replacement))

	updated, err := s.Commit()
	require.NoError(t, err)
	assert.Len(t, updated, 2)
	assert.False(t, s.Dirty())
	assert.Empty(t, s.Pending())

	nodes := s.Nodes()
	title := nodeByName(nodes, "title").(*TextNode)
	assert.Equal(t, "BYE", title.Style.Text)
	assert.Equal(t, "bye", title.Source)
	frame := nodeByName(nodes, "frame").(*ImageNode)
	assert.Equal(t, image.Rect(0, 0, 10, 10), frame.Bounds())
	assert.Equal(t, image.Rect(0, 0, 10, 10), frame.Image.Rect)
	assert.Equal(t, red, frame.Image.NRGBAAt(5, 5))

	updated, err = s.Commit()
	require.NoError(t, err)
	assert.Empty(t, updated)

	require.NoError(t, s.Revert())
	assert.Equal(t, compiled, s.Fields())
	title = nodeByName(s.Nodes(), "title").(*TextNode)
	assert.Equal(t, "HELLO", title.Style.Text)
}

func TestSessionCommitPartialFailure(t *testing.T) {
	s := loadSession(t)
	compiled := s.Fields()
	good := pngDataURL(t, psdtest.Fill(image.Rect(0, 0, 3, 3), blue))
	require.NoError(t, s.SetField("background", good))
	require.NoError(t, s.SetField("frame", base64.StdEncoding.EncodeToString([]byte("not an image"))))
	require.NoError(t, s.SetField("photo", good))

	updated, err := s.Commit()
	assert.Len(t, updated, 2)
	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	require.Len(t, joined.Unwrap(), 1)
	var decodeErr *ImageDecodeError
	require.ErrorAs(t, joined.Unwrap()[0], &decodeErr)
	assert.Equal(t, "frame", decodeErr.Node)

	frame := nodeByName(s.Nodes(), "frame").(*ImageNode)
	assert.Equal(t, green, frame.Image.NRGBAAt(0, 0))
	field, ok := s.Fields().Lookup("frame")
	require.True(t, ok)
	original, _ := compiled.Lookup("frame")
	assert.Equal(t, original.Value, field.Value)
}

func TestSessionFailedEditIsNotRetried(t *testing.T) {
	s := loadSession(t)
	before := s.Fields()
	require.NoError(t, s.SetField("frame", "data:image/png;base64,AAAA"))

	_, err := s.Commit()
	var decodeErr *ImageDecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, before, s.Fields())

	updated, err := s.Commit()
	assert.NoError(t, err)
	assert.Empty(t, updated)
}

func TestSessionCommitSharedNames(t *testing.T) {
	left, right := image.Rect(0, 0, 2, 2), image.Rect(2, 0, 4, 2)
	doc := psdtest.Document{Width: 4, Height: 2, Layers: []psdtest.Layer{
		{Name: "Layer 1", Rect: image.Rect(0, 0, 4, 2), Text: titleText("Hello")},
		{Name: "Layer 1", Rect: left, Pixels: psdtest.Fill(left, red)},
		{Name: "Layer 1", Rect: right, Pixels: psdtest.Fill(right, blue)},
	}}
	s := NewSession(NewFontResolver(nil, false))
	require.NoError(t, s.Load(context.Background(), bytes.NewReader(psdtest.Build(doc))))

	first, err := s.Export()
	require.NoError(t, err)
	updated, err := s.Commit()
	require.NoError(t, err)
	assert.Empty(t, updated)
	second, err := s.Export()
	require.NoError(t, err)
	assert.Equal(t, first.Digest, second.Digest)

	// a failed edit gives each binding its own node's value back
	before := s.Fields()
	require.Len(t, before.Images, 2)
	require.NotEqual(t, before.Images[0].Value, before.Images[1].Value)
	require.NoError(t, s.SetField("Layer 1", "data:image/png;base64,AAAA"))
	_, err = s.Commit()
	assert.Error(t, err)
	assert.Equal(t, before, s.Fields())

	require.NoError(t, s.SetField("Layer 1", pngDataURL(t, psdtest.Fill(image.Rect(0, 0, 1, 1), green))))
	updated, err = s.Commit()
	require.NoError(t, err)
	assert.Len(t, updated, 2)
	for _, n := range s.Nodes() {
		if text, ok := n.(*TextNode); ok {
			assert.Equal(t, "HELLO", text.Source)
		}
	}
}

func TestSessionDirty(t *testing.T) {
	s := loadSession(t)
	assert.False(t, s.Dirty())
	require.NoError(t, s.SetField("title", "bye"))
	assert.True(t, s.Dirty())
	_, err := s.Commit()
	require.NoError(t, err)
	assert.False(t, s.Dirty())

	require.NoError(t, s.SetField("title", "again"))
	require.NoError(t, s.Revert())
	assert.False(t, s.Dirty())
}

func TestSessionSelection(t *testing.T) {
	s := loadSession(t)
	photo := nodeByName(s.Nodes(), "photo").Attrs()

	assert.ErrorIs(t, s.Select("missing"), ErrUnknownNode)
	assert.False(t, s.Modified())

	require.NoError(t, s.Select(photo.ID))
	assert.Equal(t, photo.ID, s.Selected())
	assert.True(t, s.Modified())

	require.NoError(t, s.CommitDrag(photo.ID, 12, 3))
	moved := nodeByName(s.Nodes(), "photo").Attrs()
	assert.Equal(t, 12, moved.X)
	assert.Equal(t, 3, moved.Y)

	s.ClearSelection()
	assert.Empty(t, s.Selected())

	require.NoError(t, s.Revert())
	assert.False(t, s.Modified())
	assert.Equal(t, 2, nodeByName(s.Nodes(), "photo").Attrs().X)
}

func TestSessionExportKeepsDisplayScale(t *testing.T) {
	s := NewSession(nil)
	doc := psdtest.Document{Width: 100, Height: 50, Layers: []psdtest.Layer{
		{Name: "bg", Rect: image.Rect(0, 0, 100, 50), Pixels: psdtest.Fill(image.Rect(0, 0, 100, 50), white)},
	}}
	require.NoError(t, s.Load(context.Background(), bytes.NewReader(psdtest.Build(doc))))

	scale, err := s.Resize(40)
	require.NoError(t, err)
	assert.Equal(t, 0.4, scale)

	out, err := s.Export()
	require.NoError(t, err)
	assert.Equal(t, 100, out.Width)
	assert.Equal(t, 50, out.Height)
	assert.Equal(t, 0.4, s.DisplayScale())

	img, err := png.Decode(bytes.NewReader(out.PNG))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 50), img.Bounds())

	scale, err = s.Resize(40)
	require.NoError(t, err)
	assert.Equal(t, 0.4, scale)
	_, err = s.Resize(0)
	assert.Error(t, err)
}

func TestSessionPreview(t *testing.T) {
	s := loadSession(t)
	_, err := s.Resize(10)
	require.NoError(t, err)

	plain, err := s.Preview()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 5), plain.Bounds())

	frame := nodeByName(s.Nodes(), "frame").Attrs()
	require.NoError(t, s.Select(frame.ID))
	selected, err := s.Preview()
	require.NoError(t, err)
	assert.NotEqual(t, plain.Pix, selected.Pix)
	assert.Equal(t, selectionColor, selected.RGBAAt(2, 0))

	// selection never reaches the export
	exported, err := s.Export()
	require.NoError(t, err)
	s.ClearSelection()
	again, err := s.Export()
	require.NoError(t, err)
	assert.Equal(t, again.Digest, exported.Digest)
}

func TestSessionSuperseded(t *testing.T) {
	s := NewSession(nil)
	c, err := Compile(context.Background(), decodeFixture(t, sceneDocument()))
	require.NoError(t, err)

	first := s.Begin()
	second := s.Begin()
	assert.ErrorIs(t, s.Install(first, c), ErrSuperseded)
	_, err = s.Document()
	assert.ErrorIs(t, err, ErrNoDocument)

	require.NoError(t, s.Install(second, c))
	doc, err := s.Document()
	require.NoError(t, err)
	assert.Equal(t, 20, doc.Width)
}
