package psd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"

	log "github.com/sirupsen/logrus"
)

// SectionType is the folder marker carried by 'lsct' and 'lsdk'
type SectionType uint32

const (
	SectionOther          SectionType = 0
	SectionOpenFolder     SectionType = 1
	SectionClosedFolder   SectionType = 2
	SectionBoundingMarker SectionType = 3
)

func (s SectionType) isFolder() bool {
	return s == SectionOpenFolder || s == SectionClosedFolder
}

const (
	flagHidden = 1 << 1

	clippingNonBase = 1
)

// additional info keys whose length is 8 bytes in PSB files
var wideKeys = map[string]bool{
	"LMsk": true, "Lr16": true, "Lr32": true, "Layr": true, "Mt16": true,
	"Mt32": true, "Mtrn": true, "Alph": true, "FMsk": true, "lnk2": true,
	"FEid": true, "FXid": true, "PxSD": true,
}

type channelInfo struct {
	id     ChannelID
	length int
}

// LayerRecord is a layer as stored in the container, before the tree is built
type LayerRecord struct {
	Name      string
	LayerID   uint32
	Bounds    image.Rectangle
	Opacity   uint8
	Clipping  uint8
	Flags     uint8
	BlendMode string
	Section   SectionType
	TypeTool  *TypeTool
	Raster    *Raster
	channels  []channelInfo
}

func (r LayerRecord) String() string {
	return fmt.Sprintf("LayerRecord: %q %v section:%d clipping:%d flags:%x", r.Name, r.Bounds, r.Section, r.Clipping, r.Flags)
}

func (r LayerRecord) Visible() bool {
	return r.Flags&flagHidden == 0
}

func readLayerRecord(d *BinaryDeserializer) (rec LayerRecord, err error) {
	var rect [4]int32
	for i := range rect {
		rect[i], err = d.GetInt32()
		if err != nil {
			return
		}
	}
	// top, left, bottom, right
	rec.Bounds = image.Rect(int(rect[1]), int(rect[0]), int(rect[3]), int(rect[2]))

	count, err := d.GetUInt16()
	if err != nil {
		return
	}
	for i := 0; i < int(count); i++ {
		var ch channelInfo
		var id int16
		id, err = d.GetInt16()
		if err != nil {
			return
		}
		ch.id = ChannelID(id)
		ch.length, err = d.GetLength()
		if err != nil {
			return
		}
		rec.channels = append(rec.channels, ch)
	}

	signature, err := d.GetSignature()
	if err != nil {
		return
	}
	if signature != "8BIM" {
		err = fmt.Errorf("%w: blend mode signature %q", ErrSignature, signature)
		return
	}
	rec.BlendMode, err = d.GetSignature()
	if err != nil {
		return
	}
	fields, err := d.GetBytes(4)
	if err != nil {
		return
	}
	rec.Opacity, rec.Clipping, rec.Flags = fields[0], fields[1], fields[2]

	extraLength, err := d.GetUInt32()
	if err != nil {
		return
	}
	extra, err := d.Section(int(extraLength))
	if err != nil {
		return
	}
	err = rec.readExtra(extra)
	return
}

func (rec *LayerRecord) readExtra(d *BinaryDeserializer) (err error) {
	// layer mask data, then blending ranges
	for i := 0; i < 2; i++ {
		var length uint32
		length, err = d.GetUInt32()
		if err != nil {
			return
		}
		if err = d.Skip(int(length)); err != nil {
			return
		}
	}
	rec.Name, err = d.GetPascalString(4)
	if err != nil {
		return
	}
	rest, err := d.GetBytes(d.Remaining())
	if err != nil {
		return
	}
	return rec.readAdditionalInfo(rest, d.wide)
}

func isInfoSignature(b []byte) bool {
	return bytes.HasPrefix(b, []byte("8BIM")) || bytes.HasPrefix(b, []byte("8B64"))
}

func (rec *LayerRecord) readAdditionalInfo(buf []byte, wide bool) error {
	pos := 0
	for len(buf)-pos >= 12 {
		if !isInfoSignature(buf[pos:]) {
			return fmt.Errorf("%w: additional info signature %q", ErrSignature, buf[pos:pos+4])
		}
		key := string(buf[pos+4 : pos+8])
		pos += 8
		var length int
		if wide && wideKeys[key] {
			length = int(binary.BigEndian.Uint64(buf[pos:]))
			pos += 8
		} else {
			length = int(binary.BigEndian.Uint32(buf[pos:]))
			pos += 4
		}
		if length < 0 || length > len(buf)-pos {
			return fmt.Errorf("additional info %q: length %d overruns record", key, length)
		}
		block := NewDeserializer(buf[pos : pos+length])
		block.wide = wide
		if err := rec.interpret(key, block); err != nil {
			return fmt.Errorf("additional info %q: %w", key, err)
		}
		pos += length
		// tolerate the even and 4 byte padding writers disagree on
		for skipped := 0; skipped < 3 && pos < len(buf) && !isInfoSignature(buf[pos:]); skipped++ {
			pos++
		}
	}
	return nil
}

func (rec *LayerRecord) interpret(key string, d *BinaryDeserializer) (err error) {
	switch key {
	case "luni":
		rec.Name, err = d.GetUnicodeString()
	case "lyid":
		rec.LayerID, err = d.GetUInt32()
	case "lsct", "lsdk":
		var section uint32
		section, err = d.GetUInt32()
		rec.Section = SectionType(section)
	case "TySh":
		tt, ttErr := ReadTypeTool(d)
		if ttErr != nil {
			// the layer still has pixels, keep it as an image
			log.WithField("layer", rec.Name).Warnf("unreadable type tool data, treating as image: %v", ttErr)
			return nil
		}
		rec.TypeTool = tt
	default:
		log.Tracef("skipping additional info %s (%d bytes)", key, d.Limit())
	}
	return
}

// readChannelData reads the image data that follows all records
func (rec *LayerRecord) readChannelData(d *BinaryDeserializer, mode ColorMode) (err error) {
	raster := &Raster{
		Width:  rec.Bounds.Dx(),
		Height: rec.Bounds.Dy(),
		Mode:   mode,
		Large:  d.wide,
	}
	for _, ch := range rec.channels {
		if ch.length < 2 {
			err = fmt.Errorf("%w: channel %d length %d", ErrChannelData, ch.id, ch.length)
			return
		}
		var compression uint16
		compression, err = d.GetUInt16()
		if err != nil {
			return
		}
		var data []byte
		data, err = d.GetBytes(ch.length - 2)
		if err != nil {
			return
		}
		raster.Channels = append(raster.Channels, Channel{
			ID:          ch.id,
			Compression: Compression(compression),
			Data:        data,
		})
	}
	rec.Raster = raster
	return
}
