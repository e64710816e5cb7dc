// Package psdtest writes small layered documents for tests.
package psdtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/text/encoding/unicode"

	"github.com/ddvk/psdscene/psd"
)

// Document describes the file to write. Layers are listed top of the stack first.
type Document struct {
	Width  int
	Height int
	Large  bool
	Mode   psd.ColorMode
	Layers []Layer
}

type Layer struct {
	Name   string
	Rect   image.Rectangle
	Pixels image.Image
	Hidden bool
	// Clipping makes the layer render through the layer below it
	Clipping bool
	// Opacity 0 is written as fully opaque
	Opacity     uint8
	Compression psd.Compression
	Folder      bool
	Children    []Layer
	Text        *Text
	// NoUnicodeName leaves out the 'luni' block
	NoUnicodeName bool

	divider bool
}

type Text struct {
	Value     string
	Transform psd.Transform
	Engine    Engine
}

// Fill returns a layer image of a single color
func Fill(rect image.Rectangle, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

type writer struct {
	bytes.Buffer
	large bool
}

func (w *writer) u8(v uint8) { w.WriteByte(v) }

func (w *writer) u16(v uint16) { binary.Write(w, binary.BigEndian, v) }

func (w *writer) i16(v int16) { binary.Write(w, binary.BigEndian, v) }

func (w *writer) u32(v uint32) { binary.Write(w, binary.BigEndian, v) }

func (w *writer) i32(v int32) { binary.Write(w, binary.BigEndian, v) }

func (w *writer) f64(v float64) { binary.Write(w, binary.BigEndian, v) }

func (w *writer) length(v int) {
	if w.large {
		binary.Write(w, binary.BigEndian, uint64(v))
		return
	}
	w.u32(uint32(v))
}

func (w *writer) unicode(s string) {
	encoded, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder().String(s)
	if err != nil {
		panic(err)
	}
	w.u32(uint32(len(encoded) / 2))
	w.WriteString(encoded)
}

func (w *writer) id(s string) {
	if len(s) == 4 {
		w.u32(0)
	} else {
		w.u32(uint32(len(s)))
	}
	w.WriteString(s)
}

// Build encodes the document
func Build(doc Document) []byte {
	if doc.Mode == 0 {
		doc.Mode = psd.RGB
	}
	w := &writer{large: doc.Large}
	w.WriteString("8BPS")
	if doc.Large {
		w.u16(2)
	} else {
		w.u16(1)
	}
	w.Write(make([]byte, 6))
	channels := channelIDs(doc.Mode)
	w.u16(uint16(len(channels) - 1))
	w.u32(uint32(doc.Height))
	w.u32(uint32(doc.Width))
	w.u16(8)
	w.u16(uint16(doc.Mode))
	// color mode data, image resources
	w.u32(0)
	w.u32(0)

	var records []Layer
	flatten(doc.Layers, &records)

	info := &writer{large: doc.Large}
	info.i16(int16(len(records)))
	var data writer
	data.large = doc.Large
	for _, l := range records {
		planes := encodeChannels(l, doc.Mode, doc.Large)
		writeRecord(info, l, planes)
		for _, p := range planes {
			data.Write(p.data)
		}
	}
	info.Write(data.Bytes())
	if info.Len()%2 != 0 {
		info.u8(0)
	}

	section := &writer{large: doc.Large}
	section.length(info.Len())
	section.Write(info.Bytes())
	// global layer mask info
	section.u32(0)

	w.length(section.Len())
	w.Write(section.Bytes())

	// merged image data, raw and blank
	w.u16(0)
	w.Write(make([]byte, (len(channels)-1)*doc.Width*doc.Height))
	return w.Bytes()
}

// flatten turns the top-first tree into file order
func flatten(layers []Layer, out *[]Layer) {
	for i := len(layers) - 1; i >= 0; i-- {
		l := layers[i]
		if !l.Folder {
			*out = append(*out, l)
			continue
		}
		*out = append(*out, Layer{Name: "</Layer group>", divider: true})
		flatten(l.Children, out)
		*out = append(*out, Layer{Name: l.Name, Folder: true, Hidden: l.Hidden, Clipping: l.Clipping, Opacity: l.Opacity})
	}
}

func channelIDs(mode psd.ColorMode) []psd.ChannelID {
	if mode == psd.Grayscale {
		return []psd.ChannelID{psd.ChannelAlpha, psd.ChannelRed}
	}
	return []psd.ChannelID{psd.ChannelAlpha, psd.ChannelRed, psd.ChannelGreen, psd.ChannelBlue}
}

type plane struct {
	id   psd.ChannelID
	data []byte
}

func encodeChannels(l Layer, mode psd.ColorMode, large bool) []plane {
	width, height := l.Rect.Dx(), l.Rect.Dy()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	if l.Pixels != nil {
		draw.Draw(img, img.Bounds(), l.Pixels, l.Pixels.Bounds().Min, draw.Src)
	}
	var planes []plane
	for _, id := range channelIDs(mode) {
		raw := make([]byte, width*height)
		offset := 3
		if id >= 0 {
			offset = int(id)
		}
		for i := range raw {
			raw[i] = img.Pix[i*4+offset]
		}
		var buf writer
		buf.large = large
		buf.u16(uint16(l.Compression))
		switch l.Compression {
		case psd.CompressionRaw:
			buf.Write(raw)
		case psd.CompressionRLE:
			var rows [][]byte
			for y := 0; y < height; y++ {
				rows = append(rows, PackBits(raw[y*width:(y+1)*width]))
			}
			for _, r := range rows {
				if large {
					buf.u32(uint32(len(r)))
				} else {
					buf.u16(uint16(len(r)))
				}
			}
			for _, r := range rows {
				buf.Write(r)
			}
		case psd.CompressionZIP, psd.CompressionZIPPrediction:
			if l.Compression == psd.CompressionZIPPrediction {
				raw = predict(raw, width, height)
			}
			zw := zlib.NewWriter(&buf)
			zw.Write(raw)
			zw.Close()
		default:
			panic(fmt.Sprintf("psdtest: compression %d", l.Compression))
		}
		planes = append(planes, plane{id: id, data: buf.Bytes()})
	}
	return planes
}

func predict(raw []byte, width, height int) []byte {
	out := make([]byte, len(raw))
	for y := 0; y < height; y++ {
		row := raw[y*width : (y+1)*width]
		for x := range row {
			if x == 0 {
				out[y*width] = row[0]
				continue
			}
			out[y*width+x] = row[x] - row[x-1]
		}
	}
	return out
}

// PackBits compresses one row
func PackBits(src []byte) []byte {
	var out []byte
	for i := 0; i < len(src); {
		run := 1
		for i+run < len(src) && run < 128 && src[i+run] == src[i] {
			run++
		}
		if run > 1 {
			out = append(out, byte(int8(1-run)), src[i])
			i += run
			continue
		}
		start := i
		for i < len(src) && i-start < 128 && (i+1 >= len(src) || src[i+1] != src[i]) {
			i++
		}
		if i == start {
			i++
		}
		out = append(out, byte(i-start-1))
		out = append(out, src[start:i]...)
	}
	return out
}

func writeRecord(w *writer, l Layer, planes []plane) {
	w.i32(int32(l.Rect.Min.Y))
	w.i32(int32(l.Rect.Min.X))
	w.i32(int32(l.Rect.Max.Y))
	w.i32(int32(l.Rect.Max.X))
	w.u16(uint16(len(planes)))
	for _, p := range planes {
		w.i16(int16(p.id))
		w.length(len(p.data))
	}
	w.WriteString("8BIM")
	w.WriteString("norm")
	opacity := l.Opacity
	if opacity == 0 {
		opacity = 255
	}
	w.u8(opacity)
	if l.Clipping {
		w.u8(1)
	} else {
		w.u8(0)
	}
	var flags uint8
	if l.Hidden {
		flags |= 2
	}
	w.u8(flags)
	w.u8(0)

	extra := &writer{large: w.large}
	extra.u32(0)
	extra.u32(0)
	name := l.Name
	if len(name) > 255 {
		name = name[:255]
	}
	extra.u8(uint8(len(name)))
	extra.WriteString(name)
	if pad := (len(name) + 1) % 4; pad != 0 {
		extra.Write(make([]byte, 4-pad))
	}
	if !l.NoUnicodeName {
		block := &writer{}
		block.unicode(l.Name)
		extra.info("luni", block)
	}
	if l.Folder || l.divider {
		block := &writer{}
		if l.divider {
			block.u32(uint32(psd.SectionBoundingMarker))
		} else {
			block.u32(uint32(psd.SectionOpenFolder))
		}
		extra.info("lsct", block)
	}
	if l.Text != nil {
		extra.info("TySh", typeTool(l.Text))
	}
	w.u32(uint32(extra.Len()))
	w.Write(extra.Bytes())
}

func (w *writer) info(key string, block *writer) {
	for block.Len()%4 != 0 {
		block.u8(0)
	}
	w.WriteString("8BIM")
	w.WriteString(key)
	w.u32(uint32(block.Len()))
	w.Write(block.Bytes())
}

func typeTool(t *Text) *writer {
	w := &writer{}
	w.u16(1)
	tr := t.Transform
	for _, f := range []float64{tr.XX, tr.XY, tr.YX, tr.YY, tr.TX, tr.TY} {
		w.f64(f)
	}
	w.u16(50)
	w.u32(16)
	// text descriptor
	w.unicode("")
	w.id("TxLr")
	w.u32(2)
	w.id("Txt ")
	w.WriteString("TEXT")
	w.unicode(t.Value)
	engine := t.Engine.Bytes()
	w.id("EngineData")
	w.WriteString("tdta")
	w.u32(uint32(len(engine)))
	w.Write(engine)
	// warp descriptor
	w.u16(1)
	w.u32(16)
	w.unicode("")
	w.id("warp")
	w.u32(0)
	for i := 0; i < 4; i++ {
		w.f64(0)
	}
	return w
}
