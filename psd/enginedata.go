package psd

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/text/encoding/unicode"
)

var ErrEngineData = errors.New("bad engine data")

// EngineData is the root dictionary of the text engine block.
// Values are map[string]any, []any, float64, bool, string or Name.
type EngineData map[string]any

// Name is a /Name used as a value rather than as a key
type Name string

// Lookup walks dictionaries by string keys and arrays by int indices
func (e EngineData) Lookup(path ...any) any {
	return lookup(map[string]any(e), path...)
}

func lookup(v any, path ...any) any {
	for _, p := range path {
		switch key := p.(type) {
		case string:
			dict, ok := v.(map[string]any)
			if !ok {
				return nil
			}
			v = dict[key]
		case int:
			list, ok := v.([]any)
			if !ok || key < 0 || key >= len(list) {
				return nil
			}
			v = list[key]
		default:
			return nil
		}
	}
	return v
}

func asList(v any) []any {
	list, _ := v.([]any)
	return list
}

func asDict(v any) map[string]any {
	dict, _ := v.(map[string]any)
	return dict
}

func asFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case Name:
		return string(s), true
	}
	return "", false
}

// ParseEngineData parses the PostScript-like dictionary syntax of the text engine
func ParseEngineData(b []byte) (EngineData, error) {
	p := &engineParser{buf: b}
	p.skipSpace()
	if !p.consume("<<") {
		return nil, fmt.Errorf("%w: expected '<<' at %d", ErrEngineData, p.pos)
	}
	dict, err := p.dict()
	if err != nil {
		return nil, err
	}
	return EngineData(dict), nil
}

type engineParser struct {
	buf []byte
	pos int
}

func isEngineSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
		return true
	}
	return false
}

func isEngineDelimiter(c byte) bool {
	switch c {
	case '/', '[', ']', '<', '>', '(', ')':
		return true
	}
	return isEngineSpace(c)
}

func (p *engineParser) skipSpace() {
	for p.pos < len(p.buf) && isEngineSpace(p.buf[p.pos]) {
		p.pos++
	}
}

func (p *engineParser) consume(token string) bool {
	if bytes.HasPrefix(p.buf[p.pos:], []byte(token)) {
		p.pos += len(token)
		return true
	}
	return false
}

func (p *engineParser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at %d", ErrEngineData, fmt.Sprintf(format, args...), p.pos)
}

func (p *engineParser) dict() (map[string]any, error) {
	dict := make(map[string]any)
	for {
		p.skipSpace()
		if p.pos >= len(p.buf) {
			return nil, p.errorf("unterminated dictionary")
		}
		if p.consume(">>") {
			return dict, nil
		}
		if p.buf[p.pos] != '/' {
			return nil, p.errorf("expected key, got %q", p.buf[p.pos])
		}
		key := p.name()
		value, err := p.value()
		if err != nil {
			return nil, fmt.Errorf("/%s: %w", key, err)
		}
		dict[key] = value
	}
}

func (p *engineParser) list() ([]any, error) {
	list := []any{}
	for {
		p.skipSpace()
		if p.pos >= len(p.buf) {
			return nil, p.errorf("unterminated array")
		}
		if p.consume("]") {
			return list, nil
		}
		value, err := p.value()
		if err != nil {
			return nil, err
		}
		list = append(list, value)
	}
}

func (p *engineParser) value() (any, error) {
	p.skipSpace()
	if p.pos >= len(p.buf) {
		return nil, p.errorf("missing value")
	}
	switch c := p.buf[p.pos]; {
	case p.consume("<<"):
		return p.dict()
	case c == '[':
		p.pos++
		return p.list()
	case c == '/':
		return Name(p.name()), nil
	case c == '(':
		p.pos++
		return p.text()
	}
	return p.bare()
}

// name reads a /Name token and returns it without the slash
func (p *engineParser) name() string {
	p.pos++
	start := p.pos
	for p.pos < len(p.buf) && !isEngineDelimiter(p.buf[p.pos]) {
		p.pos++
	}
	return string(p.buf[start:p.pos])
}

var engineText = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)

func (p *engineParser) text() (any, error) {
	var raw []byte
	for {
		if p.pos >= len(p.buf) {
			return nil, p.errorf("unterminated string")
		}
		c := p.buf[p.pos]
		p.pos++
		if c == '\\' && p.pos < len(p.buf) {
			raw = append(raw, p.buf[p.pos])
			p.pos++
			continue
		}
		if c == ')' {
			break
		}
		raw = append(raw, c)
	}
	if len(raw) >= 2 && raw[0] == 0xfe && raw[1] == 0xff {
		decoded, err := engineText.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, p.errorf("utf-16 string: %v", err)
		}
		return string(decoded), nil
	}
	return string(raw), nil
}

func (p *engineParser) bare() (any, error) {
	start := p.pos
	for p.pos < len(p.buf) && !isEngineDelimiter(p.buf[p.pos]) {
		p.pos++
	}
	token := string(p.buf[start:p.pos])
	switch token {
	case "":
		return nil, p.errorf("unexpected %q", p.buf[p.pos])
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null":
		return nil, nil
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f, nil
	}
	return token, nil
}
