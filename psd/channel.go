package psd

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/klauspost/compress/zlib"
)

var ErrChannelData = errors.New("bad channel data")

type Compression uint16

const (
	CompressionRaw           Compression = 0
	CompressionRLE           Compression = 1
	CompressionZIP           Compression = 2
	CompressionZIPPrediction Compression = 3
)

type ChannelID int16

const (
	ChannelRed          ChannelID = 0
	ChannelGreen        ChannelID = 1
	ChannelBlue         ChannelID = 2
	ChannelAlpha        ChannelID = -1
	ChannelUserMask     ChannelID = -2
	ChannelRealUserMask ChannelID = -3
)

type Channel struct {
	ID          ChannelID
	Compression Compression
	Data        []byte
}

// Raster is the still compressed pixel data of one layer
type Raster struct {
	Width    int
	Height   int
	Mode     ColorMode
	Large    bool
	Channels []Channel
}

// MaxPixels bounds the size of a single decoded layer
const MaxPixels = 1 << 28

// Decode expands the channels into an image the size of the layer bounds
func (r *Raster) Decode() (*image.NRGBA, error) {
	if r.Width < 0 || r.Height < 0 || (r.Width > 0 && r.Height > MaxPixels/r.Width) {
		return nil, fmt.Errorf("%w: layer of %dx%d pixels", ErrChannelData, r.Width, r.Height)
	}
	if r.Width == 0 || r.Height == 0 {
		return image.NewNRGBA(image.Rect(0, 0, r.Width, r.Height)), nil
	}
	planes := make(map[ChannelID][]byte, len(r.Channels))
	for _, c := range r.Channels {
		if c.ID < ChannelAlpha {
			continue
		}
		plane, err := c.decode(r.Width, r.Height, r.Large)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", c.ID, err)
		}
		planes[c.ID] = plane
	}

	red, green, blue := planes[ChannelRed], planes[ChannelGreen], planes[ChannelBlue]
	if r.Mode == Grayscale {
		green, blue = red, red
	}
	alpha := planes[ChannelAlpha]

	img := image.NewNRGBA(image.Rect(0, 0, r.Width, r.Height))
	n := r.Width * r.Height
	for i := 0; i < n; i++ {
		px := img.Pix[i*4 : i*4+4 : i*4+4]
		px[0] = sample(red, i)
		px[1] = sample(green, i)
		px[2] = sample(blue, i)
		if alpha != nil {
			px[3] = alpha[i]
		} else {
			px[3] = 0xff
		}
	}
	return img, nil
}

func sample(plane []byte, i int) byte {
	if plane == nil {
		return 0
	}
	return plane[i]
}

func (c Channel) decode(width, height int, large bool) (plane []byte, err error) {
	size := width * height
	switch c.Compression {
	case CompressionRaw:
		if len(c.Data) < size {
			return nil, fmt.Errorf("%w: raw data %d bytes, want %d", ErrChannelData, len(c.Data), size)
		}
		plane = c.Data[:size]
	case CompressionRLE:
		plane, err = decodeRLE(c.Data, width, height, large)
	case CompressionZIP, CompressionZIPPrediction:
		plane, err = inflate(c.Data, size)
		if err == nil && c.Compression == CompressionZIPPrediction {
			unpredict(plane, width, height)
		}
	default:
		err = fmt.Errorf("%w: compression %d", ErrChannelData, c.Compression)
	}
	return
}

func decodeRLE(data []byte, width, height int, large bool) ([]byte, error) {
	countSize := 2
	if large {
		countSize = 4
	}
	if len(data) < height*countSize {
		return nil, fmt.Errorf("%w: truncated row table", ErrChannelData)
	}
	plane := make([]byte, width*height)
	offset := height * countSize
	for row := 0; row < height; row++ {
		var count int
		if large {
			count = int(binary.BigEndian.Uint32(data[row*4:]))
		} else {
			count = int(binary.BigEndian.Uint16(data[row*2:]))
		}
		if offset+count > len(data) {
			return nil, fmt.Errorf("%w: row %d overruns data", ErrChannelData, row)
		}
		n, err := unpackBits(plane[row*width:(row+1)*width], data[offset:offset+count])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		if n != width {
			return nil, fmt.Errorf("%w: row %d has %d bytes, want %d", ErrChannelData, row, n, width)
		}
		offset += count
	}
	return plane, nil
}

// unpackBits expands PackBits data into dst and returns the bytes written
func unpackBits(dst, src []byte) (n int, err error) {
	for i := 0; i < len(src); {
		header := int8(src[i])
		i++
		switch {
		case header >= 0:
			length := int(header) + 1
			if i+length > len(src) || n+length > len(dst) {
				return n, fmt.Errorf("%w: literal run overflow", ErrChannelData)
			}
			copy(dst[n:], src[i:i+length])
			i += length
			n += length
		case header != -128:
			length := 1 - int(header)
			if i >= len(src) || n+length > len(dst) {
				return n, fmt.Errorf("%w: repeat run overflow", ErrChannelData)
			}
			value := src[i]
			i++
			for j := 0; j < length; j++ {
				dst[n+j] = value
			}
			n += length
		}
	}
	return n, nil
}

func inflate(data []byte, size int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChannelData, err)
	}
	defer zr.Close()
	plane := make([]byte, size)
	if _, err = io.ReadFull(zr, plane); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChannelData, err)
	}
	return plane, nil
}

// unpredict undoes the horizontal delta encoding of 8 bit rows
func unpredict(plane []byte, width, height int) {
	for row := 0; row < height; row++ {
		line := plane[row*width : (row+1)*width]
		for x := 1; x < width; x++ {
			line[x] += line[x-1]
		}
	}
}
