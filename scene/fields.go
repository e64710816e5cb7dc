package scene

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"
	"unicode/utf8"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type FieldKind string

const (
	TextField  FieldKind = "text"
	ImageField FieldKind = "image"
)

var (
	ErrDataURL     = errors.New("malformed data url")
	ErrInvalidText = errors.New("text is not valid utf-8")
)

// FieldBinding is one editable value, labelled by layer name
type FieldBinding struct {
	Label string    `json:"label" yaml:"label"`
	Value string    `json:"value" yaml:"value"`
	Kind  FieldKind `json:"kind" yaml:"kind"`
}

type Fields struct {
	Texts  []FieldBinding `json:"texts" yaml:"texts"`
	Images []FieldBinding `json:"images" yaml:"images"`
}

func (f Fields) clone() Fields {
	return Fields{
		Texts:  append([]FieldBinding(nil), f.Texts...),
		Images: append([]FieldBinding(nil), f.Images...),
	}
}

// Lookup finds a field by label, images first, the precedence Values gives them
func (f Fields) Lookup(label string) (*FieldBinding, bool) {
	for i := range f.Images {
		if f.Images[i].Label == label {
			return &f.Images[i], true
		}
	}
	for i := range f.Texts {
		if f.Texts[i].Label == label {
			return &f.Texts[i], true
		}
	}
	return nil, false
}

// Values flattens the fields into a label to value map, texts first and
// images after, the later entry winning on duplicate labels
func (f Fields) Values() map[string]string {
	values := make(map[string]string, len(f.Texts)+len(f.Images))
	for _, b := range f.Texts {
		values[b.Label] = b.Value
	}
	for _, b := range f.Images {
		values[b.Label] = b.Value
	}
	return values
}

// set updates every binding of kind with the label
func (f Fields) set(kind FieldKind, label, value string) {
	list := f.Texts
	if kind == ImageField {
		list = f.Images
	}
	for i := range list {
		if list[i].Label == label {
			list[i].Value = value
		}
	}
}

// restore assigns sources, in node order, to the bindings of kind with the label
func (f Fields) restore(kind FieldKind, label string, sources []string) {
	list := f.Texts
	if kind == ImageField {
		list = f.Images
	}
	for i := range list {
		if list[i].Label == label && len(sources) > 0 {
			list[i].Value, sources = sources[0], sources[1:]
		}
	}
}

// EncodeDataURL encodes img as a base64 PNG data url
func EncodeDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeDataURL returns the payload of a base64 data url, or of bare base64
func DecodeDataURL(value string) ([]byte, error) {
	payload := strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, data, found := strings.Cut(rest, ",")
		if !found {
			return nil, fmt.Errorf("%w: missing ','", ErrDataURL)
		}
		if !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("%w: only base64 payloads are supported", ErrDataURL)
		}
		payload = data
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// some encoders drop the padding
		if b, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); rawErr == nil {
			return b, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrDataURL, err)
	}
	return b, nil
}

// decodeImage decodes any registered image format into NRGBA
func decodeImage(b []byte) (*image.NRGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n, nil
	}
	bounds := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Src)
	return out, nil
}

func validateValue(kind FieldKind, label, value string) error {
	switch kind {
	case TextField:
		if !utf8.ValidString(value) {
			return &InvalidFieldValueError{Label: label, Err: ErrInvalidText}
		}
	case ImageField:
		if _, err := DecodeDataURL(value); err != nil {
			return &InvalidFieldValueError{Label: label, Err: err}
		}
	}
	return nil
}
