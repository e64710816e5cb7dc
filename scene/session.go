package scene

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/ddvk/psdscene/psd"
)

// Output is one flattened export
type Output struct {
	PNG    []byte
	Digest string
	Width  int
	Height int
}

// Session owns the compiled scene and the edit state around it. All methods
// are safe for concurrent use; decoding and compiling run outside the lock.
type Session struct {
	fonts *FontResolver

	mu             sync.Mutex
	generation     uint64
	compiled       *Compiled
	nodes          []Node
	form           Fields
	pending        map[string]FieldBinding
	dirty          bool
	modified       bool
	selected       string
	scale          float64
	containerWidth int
}

func NewSession(fonts *FontResolver) *Session {
	return &Session{
		fonts:   fonts,
		pending: make(map[string]FieldBinding),
		scale:   1,
	}
}

// Begin starts a load and returns its generation. Only the latest generation
// can be installed.
func (s *Session) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation
}

// Load decodes and compiles a document and makes it the current scene
func (s *Session) Load(ctx context.Context, r io.Reader) error {
	gen := s.Begin()
	file, err := psd.Decode(r)
	if err != nil {
		return err
	}
	compiled, err := Compile(ctx, file)
	if err != nil {
		return err
	}
	return s.Install(gen, compiled)
}

// Install replaces the current scene and drops all edit state
func (s *Session) Install(gen uint64, c *Compiled) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		log.WithFields(log.Fields{"generation": gen, "current": s.generation}).Info("discarding superseded compile")
		return ErrSuperseded
	}
	s.compiled = c
	s.reset()
	if s.containerWidth > 0 {
		s.scale = float64(s.containerWidth) / float64(c.Document.Width)
	}
	log.WithFields(log.Fields{
		"width":  c.Document.Width,
		"height": c.Document.Height,
		"nodes":  len(c.Nodes),
	}).Info("scene installed")
	return nil
}

func (s *Session) reset() {
	s.nodes = CloneNodes(s.compiled.Nodes)
	s.form = s.compiled.Fields.clone()
	s.pending = make(map[string]FieldBinding)
	s.dirty = false
	s.modified = false
	s.selected = ""
}

func (s *Session) Document() (psd.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.compiled == nil {
		return psd.Document{}, ErrNoDocument
	}
	return s.compiled.Document, nil
}

// Problems lists the layers the last compile dropped
func (s *Session) Problems() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.compiled == nil {
		return nil
	}
	return append([]error(nil), s.compiled.Problems...)
}

// Nodes returns a copy of the live node list
func (s *Session) Nodes() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CloneNodes(s.nodes)
}

// Fields returns the field values including edits not yet committed
func (s *Session) Fields() Fields {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form.clone()
}

// Pending returns the edits made since the last commit
func (s *Session) Pending() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.pending))
	for label, b := range s.pending {
		out[label] = b.Value
	}
	return out
}

// Dirty reports edits that are recorded but not yet bound into the scene
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Modified reports a selection or drag since the scene was installed or reverted
func (s *Session) Modified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modified
}

// SetField records an edit. Invalid values leave the fields unchanged.
func (s *Session) SetField(label, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.compiled == nil {
		return ErrNoDocument
	}
	binding, ok := s.form.Lookup(label)
	if !ok {
		return &InvalidFieldValueError{Label: label, Err: ErrUnknownField}
	}
	if err := validateValue(binding.Kind, label, value); err != nil {
		return err
	}
	s.form.set(binding.Kind, label, value)
	s.pending[label] = FieldBinding{Label: label, Value: value, Kind: binding.Kind}
	s.dirty = true
	return nil
}

// Commit binds the pending edits into the scene and returns the ids of the
// nodes that changed. Per node failures are joined into the error and the
// failed fields go back to the value their node still shows.
func (s *Session) Commit() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.compiled == nil {
		return nil, ErrNoDocument
	}
	texts := make(map[string]string)
	images := make(map[string]string)
	for label, b := range s.pending {
		if b.Kind == ImageField {
			images[label] = b.Value
		} else {
			texts[label] = b.Value
		}
	}
	updated, errs := BindEdits(s.nodes, texts, images)
	for _, err := range errs {
		s.restoreField(err)
	}
	s.pending = make(map[string]FieldBinding)
	s.dirty = false
	log.WithFields(log.Fields{"updated": len(updated), "failed": len(errs)}).Info("committed edits")
	return updated, errors.Join(errs...)
}

// restoreField resets the field a bind error names to its node's source
func (s *Session) restoreField(err error) {
	var label string
	var decodeErr *ImageDecodeError
	var invalid *InvalidFieldValueError
	switch {
	case errors.As(err, &decodeErr):
		label = decodeErr.Node
	case errors.As(err, &invalid):
		label = invalid.Label
	default:
		return
	}
	b, ok := s.pending[label]
	if !ok {
		return
	}
	var sources []string
	for _, n := range s.nodes {
		if n.Attrs().Name != label {
			continue
		}
		switch node := n.(type) {
		case *ImageNode:
			if b.Kind == ImageField {
				sources = append(sources, node.Source)
			}
		case *TextNode:
			if b.Kind == TextField {
				sources = append(sources, node.Source)
			}
		}
	}
	s.form.restore(b.Kind, label, sources)
}

// Revert drops the edits and restores the scene as compiled
func (s *Session) Revert() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.compiled == nil {
		return ErrNoDocument
	}
	s.reset()
	log.Info("reverted to compiled scene")
	return nil
}

// Resize sets the display scale from the width of the editing surface
func (s *Session) Resize(containerWidth int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.compiled == nil {
		return 0, ErrNoDocument
	}
	if containerWidth <= 0 {
		return 0, fmt.Errorf("container width %d", containerWidth)
	}
	s.containerWidth = containerWidth
	s.scale = float64(containerWidth) / float64(s.compiled.Document.Width)
	return s.scale, nil
}

func (s *Session) DisplayScale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scale
}

func (s *Session) node(id string) (Node, error) {
	for _, n := range s.nodes {
		if n.Attrs().ID == id {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
}

func (s *Session) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.node(id); err != nil {
		return err
	}
	s.selected = id
	s.modified = true
	return nil
}

// Selected returns the selected node id, empty when nothing is selected
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// CommitDrag moves a node to x, y in document coordinates and selects it
func (s *Session) CommitDrag(id string, x, y int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.node(id)
	if err != nil {
		return err
	}
	a := n.Attrs()
	if !a.Draggable {
		return fmt.Errorf("node %s is not draggable", id)
	}
	a.X, a.Y = x, y
	s.selected = id
	s.modified = true
	return nil
}

func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = ""
}

// Preview renders the scene at the display scale with the selection drawn
func (s *Session) Preview() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.compiled == nil {
		return nil, ErrNoDocument
	}
	img := scaleTo(Flatten(s.compiled.Document, s.nodes, s.fonts), s.scale)
	if s.selected != "" {
		if n, err := s.node(s.selected); err == nil {
			drawSelection(img, selectionBounds(n.Attrs(), s.scale))
		}
	}
	return img, nil
}

// Export flattens the scene at the document's native size and encodes it as
// PNG. The display scale is the same afterwards.
func (s *Session) Export() (*Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.compiled == nil {
		return nil, ErrNoDocument
	}
	saved := s.scale
	s.scale = 1
	defer func() {
		s.scale = saved
	}()

	img := Flatten(s.compiled.Document, s.nodes, s.fonts)
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return nil, err
	}
	out := &Output{
		PNG:    buf.Bytes(),
		Digest: Digest(img),
		Width:  img.Rect.Dx(),
		Height: img.Rect.Dy(),
	}
	log.WithField("digest", out.Digest[:12]).Debug("exported")
	return out, nil
}
