package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"gateattend/internal/model"
)

// ErrClosed is returned by Frame after Close.
var ErrClosed = errors.New("camera closed")

// FrameSource yields still frames from a camera until closed.
type FrameSource interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// Client grabs frames from an IP camera's HTTP snapshot endpoint
// (e.g. /snapshot.jpg on most RTSP/ONVIF bridges).
type Client struct {
	URL    string
	HTTP   *http.Client
	opened atomic.Bool
	closed atomic.Bool
}

// New creates a snapshot client with a short per-frame timeout.
func New(url string) *Client {
	return &Client{
		URL: url,
		HTTP: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Open grabs one frame so access and format problems surface before the
// capture loop starts.
func (c *Client) Open(ctx context.Context) error {
	if c.URL == "" {
		return fmt.Errorf("%w: no snapshot url configured", model.ErrCameraUnsupported)
	}
	if _, err := c.Frame(ctx); err != nil {
		return err
	}
	c.opened.Store(true)
	return nil
}

// Frame downloads and decodes one snapshot. Once Open has succeeded an
// undecodable snapshot is a transient error: cameras serve half-written
// JPEGs now and then.
func (c *Client) Frame(ctx context.Context) (image.Image, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/jpeg, image/png")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("camera request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", model.ErrCameraAccessDenied, resp.Status)
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented:
		return nil, fmt.Errorf("%w: %s", model.ErrCameraUnsupported, resp.Status)
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("camera error %s: %s", resp.Status, string(body))
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%w: snapshot content type %q", model.ErrCameraUnsupported, ct)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		if c.opened.Load() {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		return nil, fmt.Errorf("%w: decode snapshot: %v", model.ErrCameraUnsupported, err)
	}
	return img, nil
}

// Close releases the client. It is safe to call more than once.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.HTTP.CloseIdleConnections()
	return nil
}
