package loom_archiver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Downloader is the pair of remote operations a download job needs.
type Downloader interface {
	// Resolve exchanges a video identifier for a short-lived signed media URL.
	Resolve(ctx context.Context, id string) (string, error)
	// Fetch streams the media at mediaURL to dest, replacing any existing file.
	Fetch(ctx context.Context, mediaURL string, dest string) error
}

var _ Downloader = (*Client)(nil)

type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

type ClientOption func(*Client)

// WithBaseURL overrides the platform base URL, e.g. for a test server.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client for the platform API. No overall timeout is applied to requests, since media bodies
// are arbitrarily large; cancel the context instead.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
		userAgent:  AppName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type transcodedURLResponse struct {
	URL string `json:"url"`
}

func (c *Client) Resolve(ctx context.Context, id string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/campaigns/sessions/%s/transcoded-url", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", &ResolutionError{ID: id, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ResolutionError{ID: id, Err: err}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return "", &ResolutionError{ID: id, StatusCode: resp.StatusCode}
	}

	var body transcodedURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &ResolutionError{ID: id, StatusCode: resp.StatusCode, Parse: true, Err: err}
	}
	if body.URL == "" {
		return "", &ResolutionError{ID: id, StatusCode: resp.StatusCode, Parse: true, Err: errors.New("missing url field")}
	}
	return body.URL, nil
}

func (c *Client) Fetch(ctx context.Context, mediaURL string, dest string) error {
	return c.FetchWithProgress(ctx, mediaURL, dest, nil)
}

// FetchWithProgress is Fetch with an optional callback receiving (bytes written, Content-Length or -1).
//
// The body is written to a temporary file beside dest which is renamed over dest only once the whole body has been
// received, so a failed fetch never leaves a truncated file at dest.
func (c *Client) FetchWithProgress(ctx context.Context, mediaURL string, dest string, onProgress func(written, total int64)) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0775); err != nil {
		return &TransferError{Path: dest, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return &TransferError{Path: dest, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransferError{Path: dest, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return &ForbiddenError{URL: mediaURL}
	}
	if !isSuccess(resp.StatusCode) {
		return &TransferError{Path: dest, StatusCode: resp.StatusCode}
	}

	if err := saveStream(ctx, dest, resp.Body, resp.ContentLength, onProgress); err != nil {
		return &TransferError{Path: dest, Err: err}
	}
	return nil
}

func saveStream(ctx context.Context, dest string, stream io.Reader, total int64, onProgress func(int64, int64)) (err error) {
	f, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to open target file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	w := &countingWriter{w: f, total: total, progress: onProgress}
	if _, err = io.CopyBuffer(w, &readerContext{ctx: ctx, r: stream}, make([]byte, ChunkSize)); err != nil {
		return fmt.Errorf("failed to save stream: %w", err)
	}
	if err = f.Chmod(0644); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), dest)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// DownloadSingle is the best-effort single video path: one resolution, one fetch, no retry and no completion
// tracking. The file is written to out, or to "{id}.mp4" in the working directory if out is empty. Returns the path
// written.
func DownloadSingle(ctx context.Context, c *Client, sourceURL string, out string, onProgress func(written, total int64)) (string, error) {
	logger := Logger(ctx).Sugar()
	id := ExtractID(sourceURL)
	mediaURL, err := c.Resolve(ctx, id)
	if err != nil {
		return "", err
	}
	target := out
	if target == "" {
		target = TargetFilename("", 0, id)
	}
	logger.Infof("Downloading video %s and saving to %s", id, target)
	if err := c.FetchWithProgress(ctx, mediaURL, target, onProgress); err != nil {
		return "", err
	}
	return target, nil
}
