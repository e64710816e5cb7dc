// Package source resolves a document locator to the document bytes.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
)

// ErrFetch is matched by every failure to obtain a document
var ErrFetch = errors.New("document fetch failed")

// FetchError reports the locator that could not be read
type FetchError struct {
	Locator string
	Status  int
	Err     error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Locator, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Locator, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrFetch, e.Err}
}

const DefaultTimeout = 60 * time.Second

// Fetcher reads documents from http(s) URLs, file URLs and paths
type Fetcher struct {
	httpClient *http.Client
	// MaxSize bounds the bytes read from any locator, 0 means no bound
	MaxSize int64
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Open is Fetch with the default fetcher
func Open(ctx context.Context, locator string) ([]byte, error) {
	return NewFetcher(DefaultTimeout).Fetch(ctx, locator)
}

// Fetch returns the document named by locator
func (f *Fetcher) Fetch(ctx context.Context, locator string) (buf []byte, err error) {
	if strings.TrimSpace(locator) == "" {
		return nil, &FetchError{Locator: locator, Err: errors.New("empty locator")}
	}
	u, parseErr := url.Parse(locator)
	switch {
	case parseErr == nil && (u.Scheme == "http" || u.Scheme == "https"):
		buf, err = f.fetchHTTP(ctx, locator)
	case parseErr == nil && u.Scheme == "file":
		buf, err = f.readFile(locator, u.Path)
	default:
		buf, err = f.readFile(locator, locator)
	}
	if err != nil {
		return nil, err
	}
	log.WithField("source", locator).Infof("fetched %s", humanize.Bytes(uint64(len(buf))))
	return buf, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, locator string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, &FetchError{Locator: locator, Err: err}
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Locator: locator, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &FetchError{Locator: locator, Status: resp.StatusCode, Err: fmt.Errorf("%q", strings.TrimSpace(string(body)))}
	}
	buf, err := f.readAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Locator: locator, Err: err}
	}
	return buf, nil
}

func (f *Fetcher) readFile(locator, path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &FetchError{Locator: locator, Err: err}
	}
	defer file.Close()
	buf, err := f.readAll(file)
	if err != nil {
		return nil, &FetchError{Locator: locator, Err: err}
	}
	return buf, nil
}

func (f *Fetcher) readAll(r io.Reader) ([]byte, error) {
	if f.MaxSize <= 0 {
		return io.ReadAll(r)
	}
	buf, err := io.ReadAll(io.LimitReader(r, f.MaxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(buf)) > f.MaxSize {
		return nil, fmt.Errorf("document larger than %s", humanize.Bytes(uint64(f.MaxSize)))
	}
	return buf, nil
}
