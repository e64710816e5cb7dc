package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/ddvk/psdscene/psd"
	"github.com/ddvk/psdscene/scene"
	"github.com/ddvk/psdscene/source"
)

// maxEditBytes bounds request bodies; image fields arrive as data urls
const maxEditBytes = 64 << 20

type documentView struct {
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	AspectRatio  float64    `json:"aspect_ratio"`
	Large        bool       `json:"large"`
	DisplayScale float64    `json:"display_scale"`
	Dirty        bool       `json:"dirty"`
	Modified     bool       `json:"modified"`
	Selected     string     `json:"selected,omitempty"`
	Problems     []string   `json:"problems"`
	Nodes        []nodeView `json:"nodes"`
}

type nodeView struct {
	ID        string `json:"id"`
	Seq       uint64 `json:"seq"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Visible   bool   `json:"visible"`
	Draggable bool   `json:"draggable"`
	Editable  bool   `json:"editable"`
	Opacity   uint8  `json:"opacity"`
	Group     int    `json:"group"`
	Clipped   bool   `json:"clipped"`
	ClipBase  string `json:"clip_base,omitempty"`

	Text      string   `json:"text,omitempty"`
	Fonts     []string `json:"fonts,omitempty"`
	FontSize  int      `json:"font_size,omitempty"`
	Fill      string   `json:"fill,omitempty"`
	Bold      bool     `json:"bold,omitempty"`
	Alignment string   `json:"alignment,omitempty"`
}

func newNodeView(n scene.Node) nodeView {
	a := n.Attrs()
	v := nodeView{
		ID:        a.ID,
		Seq:       a.Seq,
		Kind:      "image",
		Name:      a.Name,
		X:         a.X,
		Y:         a.Y,
		Width:     a.Width,
		Height:    a.Height,
		Visible:   a.Visible,
		Draggable: a.Draggable,
		Editable:  a.Editable,
		Opacity:   a.Opacity,
		Group:     a.Group,
		Clipped:   a.Clipped,
		ClipBase:  a.ClipBase,
	}
	if t, ok := n.(*scene.TextNode); ok {
		v.Kind = "text"
		v.Text = t.Style.Text
		v.Fonts = t.Style.Fonts
		v.FontSize = t.Style.FontSizePt
		v.Fill = t.Style.Fill()
		v.Bold = t.Style.Bold
		v.Alignment = t.Style.Alignment
	}
	return v
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.session.Document()
	if err != nil {
		s.fail(w, err)
		return
	}
	view := documentView{
		Width:        doc.Width,
		Height:       doc.Height,
		AspectRatio:  doc.AspectRatio,
		Large:        doc.Version == 2,
		DisplayScale: s.session.DisplayScale(),
		Dirty:        s.session.Dirty(),
		Modified:     s.session.Modified(),
		Selected:     s.session.Selected(),
		Problems:     []string{},
	}
	for _, problem := range s.session.Problems() {
		view.Problems = append(view.Problems, problem.Error())
	}
	for _, n := range s.session.Nodes() {
		view.Nodes = append(view.Nodes, newNodeView(n))
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.Reload(r.Context()); err != nil {
		s.fail(w, err)
		return
	}
	s.handleDocument(w, r)
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	if _, err := s.session.Document(); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fields":  s.session.Fields(),
		"pending": s.session.Pending(),
	})
}

func (s *Server) handleSetField(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value *string `json:"value"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Value == nil {
		jsonError(w, "value is required", http.StatusBadRequest)
		return
	}
	if err := s.session.SetField(chi.URLParam(r, "label"), *body.Value); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	updated, err := s.session.Commit()
	if errors.Is(err, scene.ErrNoDocument) {
		s.fail(w, err)
		return
	}
	failures := []string{}
	if err != nil {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				failures = append(failures, e.Error())
			}
		} else {
			failures = append(failures, err.Error())
		}
	}
	if updated == nil {
		updated = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"updated": updated,
		"errors":  failures,
	})
}

func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Revert(); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.session.Select(body.ID); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	s.session.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var body struct {
		X *int `json:"x"`
		Y *int `json:"y"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.X == nil || body.Y == nil {
		jsonError(w, "x and y are required", http.StatusBadRequest)
		return
	}
	if err := s.session.CommitDrag(chi.URLParam(r, "id"), *body.X, *body.Y); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if v := r.URL.Query().Get("width"); v != "" {
		width, err := strconv.Atoi(v)
		if err != nil || width <= 0 {
			jsonError(w, fmt.Sprintf("invalid width %q", v), http.StatusBadRequest)
			return
		}
		if _, err := s.session.Resize(width); err != nil {
			s.fail(w, err)
			return
		}
	}
	img, err := s.session.Preview()
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := scene.EncodePNG(w, img); err != nil {
		log.WithError(err).Error("encode preview")
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	out, err := s.session.Export()
	if err != nil {
		s.fail(w, err)
		return
	}
	etag := `"` + out.Digest + `"`
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(out.PNG)))
	if r.URL.Query().Has("download") {
		w.Header().Set("Content-Disposition", `attachment; filename="scene.png"`)
	}
	w.Write(out.PNG)
}

// fail maps session errors to status codes
func (s *Server) fail(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	var invalid *scene.InvalidFieldValueError
	switch {
	case errors.Is(err, scene.ErrNoDocument), errors.Is(err, scene.ErrSuperseded):
		code = http.StatusConflict
	case errors.Is(err, scene.ErrUnknownNode), errors.Is(err, scene.ErrUnknownField):
		code = http.StatusNotFound
	case errors.As(err, &invalid), errors.Is(err, psd.ErrFormat):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, source.ErrFetch):
		code = http.StatusBadGateway
	}
	if code == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	}
	jsonError(w, err.Error(), code)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxEditBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
