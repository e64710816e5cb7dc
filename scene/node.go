package scene

import (
	"fmt"
	"image"

	"github.com/ddvk/psdscene/psd"
)

// Node is implemented by *ImageNode and *TextNode
type Node interface {
	Attrs() *NodeAttrs
	Clone() Node
	paint(dst *image.RGBA, fonts *FontResolver)
}

type NodeAttrs struct {
	ID   string
	Seq  uint64
	Name string
	X    int
	Y    int
	// Width and Height are the layer bounds; text may overflow them
	Width     int
	Height    int
	Draggable bool
	Editable  bool
	Visible   bool
	Opacity   uint8
	// Group is the index of the clipping group in render order
	Group int
	// ClipBase names the layer a clipped node renders through
	ClipBase string
	Clipped  bool
}

func (a *NodeAttrs) Attrs() *NodeAttrs {
	return a
}

func (a NodeAttrs) Bounds() image.Rectangle {
	return image.Rect(a.X, a.Y, a.X+a.Width, a.Y+a.Height)
}

func newAttrs(b *psd.LayerBase, group int) NodeAttrs {
	attrs := NodeAttrs{
		Name:      b.Name,
		X:         b.Bounds.Min.X,
		Y:         b.Bounds.Min.Y,
		Width:     b.Width(),
		Height:    b.Height(),
		Draggable: true,
		Editable:  true,
		Visible:   b.Visible,
		Opacity:   b.Opacity,
		Group:     group,
		Clipped:   b.Clipped,
	}
	if b.HasClipSource {
		attrs.ClipBase = b.ClipSource
	}
	return attrs
}

type ImageNode struct {
	NodeAttrs
	Image *image.NRGBA
	// Source is the field value the pixels were last bound from
	Source string
}

func (n *ImageNode) String() string {
	return fmt.Sprintf("ImageNode: %q %v", n.Name, n.Bounds())
}

func (n *ImageNode) Clone() Node {
	c := *n
	if n.Image != nil {
		img := *n.Image
		img.Pix = append([]uint8(nil), n.Image.Pix...)
		c.Image = &img
	}
	return &c
}

type TextNode struct {
	NodeAttrs
	Style StyleRun
	// Source is the field value the text was last bound from
	Source    string
	Transform psd.Transform
}

func (n *TextNode) String() string {
	return fmt.Sprintf("TextNode: %q %v text:%q", n.Name, n.Bounds(), n.Style.Text)
}

func (n *TextNode) Clone() Node {
	c := *n
	c.Style.Fonts = append([]string(nil), n.Style.Fonts...)
	return &c
}

// CloneNodes deep copies a node list
func CloneNodes(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}
