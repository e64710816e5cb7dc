package scene

import (
	"encoding/binary"
	"encoding/hex"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strings"

	"github.com/nfnt/resize"
	"github.com/zeebo/blake3"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/ddvk/psdscene/psd"
)

var selectionColor = color.RGBA{R: 0x00, G: 0xa1, B: 0xff, A: 0xff}

const handleSize = 8

func (n *ImageNode) paint(dst *image.RGBA, _ *FontResolver) {
	if n.Image == nil {
		return
	}
	draw.Draw(dst, n.Bounds(), n.Image, n.Image.Rect.Min, draw.Src)
}

func (n *TextNode) paint(dst *image.RGBA, fonts *FontResolver) {
	face := fonts.Face(n.Style.Fonts, n.Style.FontSizePt)
	drawText(dst, face, n.Style, image.Pt(n.X, n.Y))
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// drawText lays out the lines from the top left corner, aligning each line
// within the widest one
func drawText(dst draw.Image, face font.Face, style StyleRun, at image.Point) {
	lines := strings.Split(lineBreaks.Replace(style.Text), "\n")
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(style.FillColor), Face: face}

	widths := make([]fixed.Int26_6, len(lines))
	var widest fixed.Int26_6
	for i, line := range lines {
		widths[i] = d.MeasureString(line)
		widest = max(widest, widths[i])
	}

	m := face.Metrics()
	lineHeight := m.Height
	if lineHeight == 0 {
		lineHeight = m.Ascent + m.Descent
	}
	y := fixed.I(at.Y) + m.Ascent
	for i, line := range lines {
		x := fixed.I(at.X)
		switch style.Alignment {
		case "right":
			x += widest - widths[i]
		case "center", "justify":
			x += (widest - widths[i]) / 2
		}
		d.Dot = fixed.Point26_6{X: x, Y: y}
		d.DrawString(line)
		if style.Bold {
			d.Dot = fixed.Point26_6{X: x + fixed.I(1), Y: y}
			d.DrawString(line)
		}
		y += lineHeight
	}
}

type baseKey struct {
	group int
	name  string
}

// Flatten paints the visible nodes in order onto a transparent canvas of the
// document's native size. Clipped nodes show only where their clip base is
// opaque; bases are rendered up front so a base painted later still clips.
func Flatten(doc psd.Document, nodes []Node, fonts *FontResolver) *image.RGBA {
	bounds := image.Rect(0, 0, doc.Width, doc.Height)
	canvas := image.NewRGBA(bounds)

	wanted := make(map[baseKey]bool)
	for _, n := range nodes {
		if a := n.Attrs(); a.Visible && a.Clipped {
			wanted[baseKey{a.Group, a.ClipBase}] = true
		}
	}
	bases := make(map[baseKey]*image.RGBA)
	layers := make(map[Node]*image.RGBA)
	for _, n := range nodes {
		a := n.Attrs()
		key := baseKey{a.Group, a.Name}
		if !a.Visible || a.Clipped || !wanted[key] || bases[key] != nil {
			continue
		}
		layer := image.NewRGBA(bounds)
		n.paint(layer, fonts)
		bases[key] = layer
		layers[n] = layer
	}

	for _, n := range nodes {
		a := n.Attrs()
		if !a.Visible {
			continue
		}
		layer := layers[n]
		if layer == nil {
			layer = image.NewRGBA(bounds)
			n.paint(layer, fonts)
		}

		var base *image.RGBA
		if a.Clipped {
			base = bases[baseKey{a.Group, a.ClipBase}]
		}
		mask := layerMask(base, a.Opacity)
		if mask == nil {
			draw.Draw(canvas, bounds, layer, image.Point{}, draw.Over)
			continue
		}
		draw.DrawMask(canvas, bounds, layer, image.Point{}, mask, image.Point{}, draw.Over)
	}
	return canvas
}

// layerMask combines the clip base alpha with the layer opacity; nil means
// the layer paints unmasked
func layerMask(base *image.RGBA, opacity uint8) image.Image {
	if opacity == 0xff {
		if base == nil {
			return nil
		}
		return base
	}
	if base == nil {
		return image.NewUniform(color.Alpha{A: opacity})
	}
	m := image.NewAlpha(base.Rect)
	for i := range m.Pix {
		m.Pix[i] = uint8(uint32(base.Pix[i*4+3]) * uint32(opacity) / 0xff)
	}
	return m
}

// EncodePNG writes the lossless output encoding
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(w, img)
}

// Digest is the BLAKE3 hash of the pixel buffer and its size
func Digest(img *image.RGBA) string {
	h := blake3.New()
	var size [8]byte
	binary.BigEndian.PutUint32(size[:4], uint32(img.Rect.Dx()))
	binary.BigEndian.PutUint32(size[4:], uint32(img.Rect.Dy()))
	h.Write(size[:])
	h.Write(img.Pix)
	return hex.EncodeToString(h.Sum(nil))
}

// scaleTo resizes the flattened canvas for display
func scaleTo(img *image.RGBA, scale float64) *image.RGBA {
	if scale == 1 {
		return img
	}
	width := uint(float64(img.Rect.Dx())*scale + 0.5)
	height := uint(float64(img.Rect.Dy())*scale + 0.5)
	if width == 0 || height == 0 {
		return image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	}
	resized := resize.Resize(width, height, img, resize.Bilinear)
	out := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	draw.Draw(out, out.Bounds(), resized, resized.Bounds().Min, draw.Src)
	return out
}

// drawSelection outlines r and marks its corners and edge midpoints
func drawSelection(dst *image.RGBA, r image.Rectangle) {
	src := image.NewUniform(selectionColor)
	for _, edge := range []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1),
		image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y),
		image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y),
	} {
		draw.Draw(dst, edge.Intersect(dst.Rect), src, image.Point{}, draw.Src)
	}
	midX, midY := (r.Min.X+r.Max.X)/2, (r.Min.Y+r.Max.Y)/2
	for _, p := range []image.Point{
		r.Min, image.Pt(midX, r.Min.Y), image.Pt(r.Max.X, r.Min.Y),
		image.Pt(r.Min.X, midY), image.Pt(r.Max.X, midY),
		image.Pt(r.Min.X, r.Max.Y), image.Pt(midX, r.Max.Y), r.Max,
	} {
		handle := image.Rect(p.X-handleSize/2, p.Y-handleSize/2, p.X+handleSize/2, p.Y+handleSize/2)
		draw.Draw(dst, handle.Intersect(dst.Rect), image.White, image.Point{}, draw.Src)
		inner := handle.Inset(1)
		draw.Draw(dst, inner.Intersect(dst.Rect), src, image.Point{}, draw.Src)
	}
}

// selectionBounds is the display-space box of a node
func selectionBounds(a *NodeAttrs, scale float64) image.Rectangle {
	s := func(v int) int { return int(float64(v)*scale + 0.5) }
	return image.Rect(s(a.X), s(a.Y), s(a.X+a.Width), s(a.Y+a.Height))
}
