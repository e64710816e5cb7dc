package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/ddvk/psdscene/config"
	"github.com/ddvk/psdscene/scene"
	"github.com/ddvk/psdscene/source"
)

func newFetcher(cfg *config.Config) *source.Fetcher {
	fetcher := source.NewFetcher(cfg.FetchTimeout())
	fetcher.MaxSize = cfg.Fetch.MaxSize
	return fetcher
}

func newSession(cfg *config.Config) *scene.Session {
	return scene.NewSession(scene.NewFontResolver(cfg.Fonts.Dirs, cfg.Fonts.System))
}

// openSession fetches, decodes and compiles the configured source
func openSession(ctx context.Context, cfg *config.Config) (*scene.Session, error) {
	buf, err := newFetcher(cfg).Fetch(ctx, cfg.Source)
	if err != nil {
		return nil, err
	}
	session := newSession(cfg)
	if err := session.Load(ctx, bytes.NewReader(buf)); err != nil {
		return nil, err
	}
	for _, problem := range session.Problems() {
		log.Warn(problem)
	}
	return session, nil
}

// parseAssignments splits label=value pairs; the label may not be empty
func parseAssignments(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		label, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(label) == "" {
			return nil, fmt.Errorf("expected label=value, got %q", pair)
		}
		out[label] = value
	}
	return out, nil
}

// fileDataURL reads an image file into a data url
func fileDataURL(path string) (string, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mime := http.DetectContentType(buf)
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(buf), nil
}
