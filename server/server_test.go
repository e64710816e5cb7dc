package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddvk/psdscene/psd"
	"github.com/ddvk/psdscene/psd/psdtest"
	"github.com/ddvk/psdscene/scene"
	"github.com/ddvk/psdscene/source"
)

func testDocument() []byte {
	full := image.Rect(0, 0, 20, 10)
	frame := image.Rect(0, 0, 10, 10)
	photo := image.Rect(2, 2, 6, 6)
	return psdtest.Build(psdtest.Document{
		Width:  20,
		Height: 10,
		Layers: []psdtest.Layer{
			{Name: "title", Rect: image.Rect(1, 1, 19, 6), Text: &psdtest.Text{
				Value:     "Hello",
				Transform: psd.Transform{XX: 1, YY: 1},
				Engine: psdtest.Engine{
					Text:          "Hello",
					Fonts:         []string{"NoSuchFont"},
					Justification: []int{0},
					Runs:          []psdtest.Style{{FontSize: 8}},
				},
			}},
			{Name: "photo", Rect: photo, Pixels: psdtest.Fill(photo, color.NRGBA{B: 0xff, A: 0xff}), Clipping: true},
			{Name: "frame", Rect: frame, Pixels: psdtest.Fill(frame, color.NRGBA{G: 0xff, A: 0xff})},
			{Name: "background", Rect: full, Pixels: psdtest.Fill(full, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})},
		},
	})
}

func newTestServer(t *testing.T, locator string) *httptest.Server {
	t.Helper()
	session := scene.NewSession(scene.NewFontResolver(nil, false))
	srv := httptest.NewServer(NewServer(session, source.NewFetcher(time.Second), locator, 0))
	t.Cleanup(srv.Close)
	return srv
}

func writeDocument(t *testing.T, body []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.psd")
	require.NoError(t, os.WriteFile(path, body, 0o644))
	return path
}

func do(t *testing.T, method, url string, body string, header ...string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, strings.NewReader(body))
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func loadedServer(t *testing.T) (*httptest.Server, documentView) {
	t.Helper()
	srv := newTestServer(t, writeDocument(t, testDocument()))
	resp := do(t, http.MethodPost, srv.URL+"/api/reload", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc documentView
	decodeJSON(t, resp, &doc)
	return srv, doc
}

func getDocument(t *testing.T, srv *httptest.Server) documentView {
	t.Helper()
	resp := do(t, http.MethodGet, srv.URL+"/api/document", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc documentView
	decodeJSON(t, resp, &doc)
	return doc
}

func findNode(doc documentView, name string) nodeView {
	for _, n := range doc.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nodeView{}
}

func TestHealthAndEmptySession(t *testing.T) {
	srv := newTestServer(t, "unused.psd")

	resp := do(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	for _, path := range []string{"/api/document", "/api/fields", "/api/export.png", "/api/preview.png"} {
		resp = do(t, http.MethodGet, srv.URL+path, "")
		assert.Equal(t, http.StatusConflict, resp.StatusCode, path)
	}
}

func TestReload(t *testing.T) {
	_, doc := loadedServer(t)
	assert.Equal(t, 20, doc.Width)
	assert.Equal(t, 10, doc.Height)
	assert.InDelta(t, 0.5, doc.AspectRatio, 1e-9)
	assert.Empty(t, doc.Problems)

	title := findNode(doc, "title")
	assert.Equal(t, "text", title.Kind)
	assert.Equal(t, "Hello", title.Text)
	assert.Equal(t, 8, title.FontSize)

	photo := findNode(doc, "photo")
	assert.Equal(t, "image", photo.Kind)
	assert.True(t, photo.Clipped)
	assert.Equal(t, "frame", photo.ClipBase)
	assert.NotEmpty(t, photo.ID)
}

func TestReloadErrors(t *testing.T) {
	srv := newTestServer(t, filepath.Join(t.TempDir(), "absent.psd"))
	resp := do(t, http.MethodPost, srv.URL+"/api/reload", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	srv = newTestServer(t, writeDocument(t, []byte("not a document")))
	resp = do(t, http.MethodPost, srv.URL+"/api/reload", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var body map[string]string
	decodeJSON(t, resp, &body)
	assert.NotEmpty(t, body["error"])
}

func TestFieldEditing(t *testing.T) {
	srv, _ := loadedServer(t)

	resp := do(t, http.MethodPut, srv.URL+"/api/fields/nope", `{"value":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = do(t, http.MethodPut, srv.URL+"/api/fields/frame", `{"value":"data:image/png;base64,@@@"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp = do(t, http.MethodPut, srv.URL+"/api/fields/title", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = do(t, http.MethodPut, srv.URL+"/api/fields/title", `{"value":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPut, srv.URL+"/api/fields/title", `{"value":"Bye"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.True(t, getDocument(t, srv).Dirty)

	var fields struct {
		Fields  scene.Fields      `json:"fields"`
		Pending map[string]string `json:"pending"`
	}
	decodeJSON(t, do(t, http.MethodGet, srv.URL+"/api/fields", ""), &fields)
	assert.Equal(t, map[string]string{"title": "Bye"}, fields.Pending)
	require.Len(t, fields.Fields.Texts, 1)
	assert.Equal(t, "Bye", fields.Fields.Texts[0].Value)

	var commit struct {
		Updated []string `json:"updated"`
		Errors  []string `json:"errors"`
	}
	resp = do(t, http.MethodPost, srv.URL+"/api/commit", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &commit)
	assert.Len(t, commit.Updated, 1)
	assert.Empty(t, commit.Errors)

	doc := getDocument(t, srv)
	assert.Equal(t, "Bye", findNode(doc, "title").Text)

	resp = do(t, http.MethodPost, srv.URL+"/api/revert", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	doc = getDocument(t, srv)
	assert.Equal(t, "Hello", findNode(doc, "title").Text)
}

func TestSelectionAndDrag(t *testing.T) {
	srv, doc := loadedServer(t)
	photo := findNode(doc, "photo")

	resp := do(t, http.MethodPost, srv.URL+"/api/selection", `{"id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/selection", `{"id":"`+photo.ID+`"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/nodes/"+photo.ID+"/position", `{"x":4}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = do(t, http.MethodPost, srv.URL+"/api/nodes/"+photo.ID+"/position", `{"x":4,"y":1}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	doc = getDocument(t, srv)
	assert.True(t, doc.Modified)
	assert.Equal(t, photo.ID, doc.Selected)
	moved := findNode(doc, "photo")
	assert.Equal(t, 4, moved.X)
	assert.Equal(t, 1, moved.Y)

	resp = do(t, http.MethodDelete, srv.URL+"/api/selection", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	doc = getDocument(t, srv)
	assert.Empty(t, doc.Selected)
}

func TestPreviewAndExport(t *testing.T) {
	srv, _ := loadedServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/api/preview.png?width=abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/preview.png?width=10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	preview, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 5), preview.Bounds())

	resp = do(t, http.MethodGet, srv.URL+"/api/export.png?download", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "scene.png")
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	exported, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 20, 10), exported.Bounds())

	// the preview width is kept across exports
	doc := getDocument(t, srv)
	assert.Equal(t, 0.5, doc.DisplayScale)

	resp = do(t, http.MethodGet, srv.URL+"/api/export.png", "", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
}
