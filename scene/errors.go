package scene

import (
	"errors"
	"fmt"
)

var (
	ErrNoExportEntry = errors.New("no export entry for text layer")
	ErrNoStyleRun    = errors.New("text layer has no style run")
	ErrSuperseded    = errors.New("compile superseded by a newer load")
	ErrNoDocument    = errors.New("no document loaded")
	ErrUnknownNode   = errors.New("unknown node")
	ErrUnknownField  = errors.New("unknown field")
	ErrDuplicateID   = errors.New("duplicate node id")
)

// LayerMatchError drops a text layer whose style cannot be derived
type LayerMatchError struct {
	Layer string
	Err   error
}

func (e *LayerMatchError) Error() string {
	return fmt.Sprintf("text layer %q: %v", e.Layer, e.Err)
}

func (e *LayerMatchError) Unwrap() error {
	return e.Err
}

// ImageDecodeError is raised per node; the node keeps its previous content
type ImageDecodeError struct {
	Node string
	Err  error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("image %q: %v", e.Node, e.Err)
}

func (e *ImageDecodeError) Unwrap() error {
	return e.Err
}

// InvalidFieldValueError rejects an edit; field state is left unchanged
type InvalidFieldValueError struct {
	Label string
	Err   error
}

func (e *InvalidFieldValueError) Error() string {
	return fmt.Sprintf("field %q: %v", e.Label, e.Err)
}

func (e *InvalidFieldValueError) Unwrap() error {
	return e.Err
}
