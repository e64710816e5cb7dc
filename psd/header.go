package psd

import (
	"fmt"
)

type ColorMode uint16

const (
	Bitmap       ColorMode = 0
	Grayscale    ColorMode = 1
	Indexed      ColorMode = 2
	RGB          ColorMode = 3
	CMYK         ColorMode = 4
	Multichannel ColorMode = 7
	Duotone      ColorMode = 8
	Lab          ColorMode = 9
)

func (c ColorMode) String() string {
	var name string
	switch c {
	case Bitmap:
		name = "Bitmap"
	case Grayscale:
		name = "Grayscale"
	case Indexed:
		name = "Indexed"
	case RGB:
		name = "RGB"
	case CMYK:
		name = "CMYK"
	case Multichannel:
		name = "Multichannel"
	case Duotone:
		name = "Duotone"
	case Lab:
		name = "Lab"
	}
	return fmt.Sprintf("%d (%s)", uint16(c), name)
}

const (
	headerSignature = "8BPS"
	headerLength    = 26

	versionPSD = 1
	versionPSB = 2
)

type Header struct {
	Version   uint16
	Channels  uint16
	Height    uint32
	Width     uint32
	Depth     uint16
	ColorMode ColorMode
}

func (h Header) String() string {
	return fmt.Sprintf("v%d %dx%d, channels: %d, depth: %d, mode: %v", h.Version, h.Width, h.Height, h.Channels, h.Depth, h.ColorMode)
}

// IsLarge reports the PSB variant, which widens several length fields
func (h Header) IsLarge() bool {
	return h.Version == versionPSB
}

func ReadHeader(d *BinaryDeserializer) (h Header, err error) {
	signature, err := d.GetSignature()
	if err != nil {
		return
	}
	if signature != headerSignature {
		err = fmt.Errorf("%w: %q", ErrSignature, signature)
		return
	}
	h.Version, err = d.GetUInt16()
	if err != nil {
		return
	}
	if h.Version != versionPSD && h.Version != versionPSB {
		err = fmt.Errorf("%w: version %d", ErrUnsupported, h.Version)
		return
	}
	// reserved
	if err = d.Skip(6); err != nil {
		return
	}
	h.Channels, err = d.GetUInt16()
	if err != nil {
		return
	}
	h.Height, err = d.GetUInt32()
	if err != nil {
		return
	}
	h.Width, err = d.GetUInt32()
	if err != nil {
		return
	}
	h.Depth, err = d.GetUInt16()
	if err != nil {
		return
	}
	var mode uint16
	mode, err = d.GetUInt16()
	if err != nil {
		return
	}
	h.ColorMode = ColorMode(mode)
	return
}

func (h Header) validate() error {
	if h.Width == 0 || h.Height == 0 {
		return fmt.Errorf("%w: empty canvas %dx%d", ErrUnsupported, h.Width, h.Height)
	}
	if uint64(h.Width)*uint64(h.Height) > MaxPixels {
		return fmt.Errorf("%w: canvas %dx%d is too large", ErrUnsupported, h.Width, h.Height)
	}
	if h.Depth != 8 {
		return fmt.Errorf("%w: depth %d", ErrUnsupported, h.Depth)
	}
	if h.ColorMode != RGB && h.ColorMode != Grayscale {
		return fmt.Errorf("%w: color mode %v", ErrUnsupported, h.ColorMode)
	}
	return nil
}
