package psd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ErrFormat is matched by every error caused by a malformed or unsupported container
var ErrFormat = errors.New("invalid document format")

var ErrSignature = errors.New("bad signature")
var ErrUnsupported = errors.New("unsupported document")

// FormatError reports where in the container decoding stopped
type FormatError struct {
	Section  string
	Position int
	Err      error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("psd: %s at position %d: %v", e.Section, e.Position, e.Err)
}

func (e *FormatError) Unwrap() []error {
	return []error{ErrFormat, e.Err}
}

func formatError(section string, d *BinaryDeserializer, err error) error {
	var fe *FormatError
	if errors.As(err, &fe) {
		return err
	}
	pos := 0
	if d != nil {
		pos = d.Pos()
	}
	return &FormatError{Section: section, Position: pos, Err: err}
}

// DebugBuffer logs the bytes within window of pos as hex with a marker under pos
func DebugBuffer(buffer []byte, pos, window int) {
	if pos < 0 || pos > len(buffer) {
		return
	}
	start := max(0, pos-window)
	end := min(len(buffer), pos+window)
	log.Debug(hex.EncodeToString(buffer[start:end]))
	log.Debugf("%s^  pos: %d (max: %d)", strings.Repeat("  ", pos-start), pos, len(buffer))
}
