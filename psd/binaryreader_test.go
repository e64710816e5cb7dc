package psd

import (
	"bytes"
	"io"
	"testing"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryDeserializer(t *testing.T) {
	buf := []byte{
		0x01, 0x02, // uint16
		0xff, 0xfe, // int16
		0x00, 0x00, 0x01, 0x00, // uint32
		0x03, 'a', 'b', 'c', // pascal string padded to 4
		0x00, 0x00, 0x00, 0x02, 0x00, 'h', 0x00, 'i', // unicode string
		'8', 'B', 'I', 'M',
	}
	d := NewDeserializer(buf)

	u16, err := d.GetUInt16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), u16)

	i16, err := d.GetInt16()
	require.NoError(t, err)
	assert.Equal(t, int16(-2), i16)

	u32, err := d.GetUInt32()
	require.NoError(t, err)
	assert.Equal(t, uint32(256), u32)

	s, err := d.GetPascalString(4)
	require.NoError(t, err)
	assert.Equal(t, "abc", s)
	assert.Equal(t, 12, d.Pos())

	s, err = d.GetUnicodeString()
	require.NoError(t, err)
	assert.Equal(t, "hi", s)

	sig, err := d.GetSignature()
	require.NoError(t, err)
	assert.Equal(t, "8BIM", sig)
	assert.Equal(t, 0, d.Remaining())

	_, err = d.GetBytes(1)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestBinaryDeserializerWide(t *testing.T) {
	buf := []byte{0, 0, 0, 0, 0, 0, 0, 3, 'a', 'b', 'c', 'd'}

	d := NewDecoder(bytes.NewReader(buf), len(buf))
	d.wide = true
	length, err := d.GetLength()
	require.NoError(t, err)
	assert.Equal(t, 3, length)

	section, err := d.Section(length)
	require.NoError(t, err)
	assert.True(t, section.wide)
	assert.Equal(t, 3, section.Limit())
	assert.Equal(t, 1, d.Remaining())

	_, err = section.Section(4)
	assert.Error(t, err)
}

func TestDebugBuffer(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()
	level := log.GetLevel()
	log.SetLevel(log.DebugLevel)
	defer log.SetLevel(level)

	DebugBuffer([]byte{0x38, 0x42, 0x50, 0x53, 0x00, 0x09}, 5, 2)
	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, "530009", hook.AllEntries()[0].Message)
	assert.Equal(t, "    ^  pos: 5 (max: 6)", hook.AllEntries()[1].Message)

	hook.Reset()
	DebugBuffer([]byte{1}, 3, 2)
	assert.Empty(t, hook.AllEntries())
}
