package psd

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
)

type reader interface {
	io.ByteReader
	io.Reader
}

// BinaryDeserializer reads the big-endian primitives of the container and
// keeps track of how far into the stream it is.
type BinaryDeserializer struct {
	_r       reader
	position int
	max      int
	// wide switches section lengths and channel lengths to 8 bytes (PSB)
	wide bool
}

// NewDecoder returns a deserializer with the specified limit
func NewDecoder(r io.Reader, limit int) *BinaryDeserializer {
	decoder := &BinaryDeserializer{
		_r:  bufio.NewReader(io.LimitReader(r, int64(limit))),
		max: limit,
	}
	return decoder
}

func NewDeserializer(buffer []byte) *BinaryDeserializer {
	limit := len(buffer)
	reader := bytes.NewBuffer(buffer)
	decoder := &BinaryDeserializer{
		_r:  reader,
		max: limit,
	}
	return decoder
}

// Pos current position in the stream
func (d *BinaryDeserializer) Pos() int {
	return d.position
}

func (d *BinaryDeserializer) Limit() int {
	return d.max
}

// Remaining bytes before the limit
func (d *BinaryDeserializer) Remaining() int {
	return d.max - d.position
}

func (d *BinaryDeserializer) Read(b []byte) (n int, err error) {
	n, err = d._r.Read(b)
	d.position += n
	return
}

func (d *BinaryDeserializer) ReadByte() (b byte, err error) {
	b, err = d._r.ReadByte()
	if err != nil {
		return b, err
	}
	d.position += 1
	return
}

func (d *BinaryDeserializer) GetBytes(size int) (result []byte, err error) {
	if size < 0 || size > d.Remaining() {
		err = fmt.Errorf("read of %d bytes at position %d exceeds limit %d: %w", size, d.position, d.max, io.ErrUnexpectedEOF)
		return
	}
	result = make([]byte, size)
	_, err = io.ReadFull(d, result)
	return
}

func (d *BinaryDeserializer) Skip(size int) (err error) {
	_, err = d.GetBytes(size)
	return
}

func (d *BinaryDeserializer) GetUInt16() (result uint16, err error) {
	err = binary.Read(d, binary.BigEndian, &result)
	return
}

func (d *BinaryDeserializer) GetInt16() (result int16, err error) {
	err = binary.Read(d, binary.BigEndian, &result)
	return
}

func (d *BinaryDeserializer) GetUInt32() (val uint32, err error) {
	err = binary.Read(d, binary.BigEndian, &val)
	return
}

func (d *BinaryDeserializer) GetInt32() (val int32, err error) {
	err = binary.Read(d, binary.BigEndian, &val)
	return
}

func (d *BinaryDeserializer) GetUInt64() (val uint64, err error) {
	err = binary.Read(d, binary.BigEndian, &val)
	return
}

func (d *BinaryDeserializer) GetInt64() (val int64, err error) {
	err = binary.Read(d, binary.BigEndian, &val)
	return
}

func (d *BinaryDeserializer) GetFloat64() (result float64, err error) {
	err = binary.Read(d, binary.BigEndian, &result)
	return
}

// GetLength reads a section length, 4 bytes for PSD and 8 for PSB
func (d *BinaryDeserializer) GetLength() (int, error) {
	if d.wide {
		val, err := d.GetUInt64()
		return int(val), err
	}
	val, err := d.GetUInt32()
	return int(val), err
}

// GetSignature reads a 4 character key
func (d *BinaryDeserializer) GetSignature() (string, error) {
	b, err := d.GetBytes(4)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetPascalString reads a length prefixed string, the total size padded
// to a multiple of pad
func (d *BinaryDeserializer) GetPascalString(pad int) (string, error) {
	size, err := d.ReadByte()
	if err != nil {
		return "", err
	}
	b, err := d.GetBytes(int(size))
	if err != nil {
		return "", err
	}
	total := int(size) + 1
	if pad > 1 && total%pad != 0 {
		if err = d.Skip(pad - total%pad); err != nil {
			return "", err
		}
	}
	return string(b), nil
}

// GetUnicodeString reads a character count followed by UTF-16BE code units
func (d *BinaryDeserializer) GetUnicodeString() (string, error) {
	count, err := d.GetUInt32()
	if err != nil {
		return "", err
	}
	b, err := d.GetBytes(int(count) * 2)
	if err != nil {
		return "", err
	}
	return decodeUTF16(b)
}

// Section reads a block of size bytes into a new deserializer
func (d *BinaryDeserializer) Section(size int) (*BinaryDeserializer, error) {
	buffer, err := d.GetBytes(size)
	if err != nil {
		return nil, err
	}
	sub := NewDeserializer(buffer)
	sub.wide = d.wide
	return sub, nil
}

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

func decodeUTF16(b []byte) (string, error) {
	out, err := utf16be.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\x00"), nil
}
