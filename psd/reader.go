package psd

import (
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
)

// Decode reads a whole PSD or PSB document.
// Every error it returns matches ErrFormat except failures of r itself.
func Decode(r io.Reader) (*File, error) {
	buffer, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(buffer)
}

func DecodeBytes(buffer []byte) (*File, error) {
	log.Debugf("decoding document, %s", humanize.Bytes(uint64(len(buffer))))
	dr := DocumentReader{d: NewDeserializer(buffer)}
	file, err := dr.ExtractDocument()
	var fe *FormatError
	if err != nil && errors.As(err, &fe) && log.IsLevelEnabled(log.DebugLevel) {
		DebugBuffer(buffer, fe.Position, 16)
	}
	return file, err
}

// DocumentReader walks the sections of the container
type DocumentReader struct {
	d       *BinaryDeserializer
	header  Header
	records []LayerRecord
}

func (s *DocumentReader) ExtractDocument() (file *File, err error) {
	s.header, err = ReadHeader(s.d)
	if err != nil {
		return nil, formatError("header", s.d, err)
	}
	if err = s.header.validate(); err != nil {
		return nil, formatError("header", s.d, err)
	}
	s.d.wide = s.header.IsLarge()
	log.Debugf("header: %v", s.header)

	for _, section := range []string{"color mode data", "image resources"} {
		var length uint32
		length, err = s.d.GetUInt32()
		if err == nil {
			err = s.d.Skip(int(length))
		}
		if err != nil {
			return nil, formatError(section, s.d, err)
		}
		log.Tracef("skipped %s, %s", section, humanize.Bytes(uint64(length)))
	}

	if err = s.readLayerAndMask(); err != nil {
		return nil, err
	}

	layers, export := buildTree(s.records)
	file = &File{
		Document: newDocument(s.header),
		Layers:   layers,
		Export:   export,
	}
	log.Debugf("decoded %d layer records into %d layers", len(s.records), len(layers))
	return file, nil
}

func (s *DocumentReader) readLayerAndMask() error {
	length, err := s.d.GetLength()
	if err != nil {
		return formatError("layer and mask information", s.d, err)
	}
	if length == 0 {
		return nil
	}
	section, err := s.d.Section(length)
	if err != nil {
		return formatError("layer and mask information", s.d, err)
	}
	log.Debugf("layer and mask information, %s", humanize.Bytes(uint64(length)))

	infoLength, err := section.GetLength()
	if err != nil {
		return formatError("layer info", section, err)
	}
	if infoLength == 0 {
		return nil
	}
	info, err := section.Section(infoLength)
	if err != nil {
		return formatError("layer info", section, err)
	}
	return s.readLayerInfo(info)
}

func (s *DocumentReader) readLayerInfo(d *BinaryDeserializer) error {
	count, err := d.GetInt16()
	if err != nil {
		return formatError("layer count", d, err)
	}
	// a negative count means the first alpha channel holds the merged transparency
	if count < 0 {
		count = -count
	}
	s.records = make([]LayerRecord, 0, count)
	for i := 0; i < int(count); i++ {
		rec, err := readLayerRecord(d)
		if err != nil {
			return formatError(fmt.Sprintf("layer record %d", i), d, err)
		}
		log.Trace(rec)
		s.records = append(s.records, rec)
	}
	for i := range s.records {
		if err := s.records[i].readChannelData(d, s.header.ColorMode); err != nil {
			return formatError(fmt.Sprintf("channel image data of %q", s.records[i].Name), d, err)
		}
	}
	return nil
}
