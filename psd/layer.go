package psd

import (
	"fmt"
	"image"
)

// Document holds the canvas facts; it does not change after decoding
type Document struct {
	Width       int
	Height      int
	AspectRatio float64
	Version     uint16
	Depth       uint16
	ColorMode   ColorMode
}

func newDocument(h Header) Document {
	return Document{
		Width:       int(h.Width),
		Height:      int(h.Height),
		AspectRatio: float64(h.Height) / float64(h.Width),
		Version:     h.Version,
		Depth:       h.Depth,
		ColorMode:   h.ColorMode,
	}
}

// File is the decoded container.
// Layers is ordered top of the stack first, folders before their children.
type File struct {
	Document Document
	Layers   []RawLayer
	Export   ExportTree
}

// RawLayer is implemented by *ImageRecord and *TextRecord
type RawLayer interface {
	Base() *LayerBase
}

type LayerBase struct {
	Name    string
	LayerID uint32
	Bounds  image.Rectangle
	Visible bool
	Opacity uint8
	// Clipped is set on layers that render through the layer below them
	Clipped bool
	// ClipSource names the base layer of a clipped layer
	ClipSource    string
	HasClipSource bool
	Depth         int
}

func (b *LayerBase) Base() *LayerBase {
	return b
}

func (b LayerBase) Width() int {
	return b.Bounds.Dx()
}

func (b LayerBase) Height() int {
	return b.Bounds.Dy()
}

type ImageRecord struct {
	LayerBase
	// Group marks folder pseudo-layers
	Group  bool
	Raster *Raster
}

func (t ImageRecord) String() string {
	return fmt.Sprintf("ImageRecord: %q %v visible:%v group:%v", t.Name, t.Bounds, t.Visible, t.Group)
}

type TextRecord struct {
	LayerBase
	Text      string
	Engine    EngineData
	Transform Transform
	// Descriptor is the decoded text descriptor of the type tool block
	Descriptor *Descriptor
}

func (t TextRecord) String() string {
	return fmt.Sprintf("TextRecord: %q %v text:%q", t.Name, t.Bounds, t.Text)
}

// Transform is the affine matrix stored with a text layer
type Transform struct {
	XX, XY, YX, YY, TX, TY float64
}
