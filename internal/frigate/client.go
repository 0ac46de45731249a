// Package frigate wraps the Frigate NVR HTTP API surface this tool
// consumes: starting recording exports, inspecting export records,
// deleting them, and discovering cameras.
package frigate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/haotianfei/frigate-exports-backup/internal/timeplan"
)

// ErrAPI indicates a transport failure or an error response from Frigate.
var ErrAPI = errors.New("frigate api request failed")

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the Frigate API base URL, e.g. "http://frigate:5000".
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithTimeout sets the per-request timeout on the underlying client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// Client is a stateless Frigate API client. It never retries: failed
// calls surface immediately and retry policy stays with the caller.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client using the provided options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http: cleanhttp.DefaultPooledClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExportState classifies an export record as seen by the API.
type ExportState int

const (
	// StateNotFound means no record with the requested id exists. Export
	// records are created asynchronously, so this is a status, not an error.
	StateNotFound ExportState = iota
	StateInProgress
	StateFinished
)

func (s ExportState) String() string {
	switch s {
	case StateInProgress:
		return "in_progress"
	case StateFinished:
		return "finished"
	default:
		return "not_found"
	}
}

// ExportRecord is one entry of the Frigate export list.
type ExportRecord struct {
	ID         string  `json:"id"`
	Camera     string  `json:"camera"`
	Name       string  `json:"name"`
	Date       float64 `json:"date"`
	VideoPath  string  `json:"video_path"`
	InProgress bool    `json:"in_progress"`
}

// ExportStatus is the polled view of a single export.
type ExportStatus struct {
	State     ExportState
	Camera    string
	Name      string
	VideoPath string
}

type startExportRequest struct {
	Playback string `json:"playback"`
	Source   string `json:"source"`
	Name     string `json:"name"`
}

type startExportResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	ExportID string `json:"export_id"`
}

// ExportName returns the deterministic export name for a camera and
// window. Reruns of the same job produce the same name.
func ExportName(camera string, w timeplan.Window) string {
	return camera + "_" + w.Slug()
}

// StartExport submits a recording export for the camera over the window
// and returns the export id assigned by Frigate.
func (c *Client) StartExport(ctx context.Context, camera string, w timeplan.Window) (string, error) {
	url := fmt.Sprintf("%s/api/export/%s/start/%d/end/%d",
		c.baseURL, camera, w.Start.Unix(), w.End.Unix())

	payload, err := json.Marshal(startExportRequest{
		Playback: "realtime",
		Source:   "recordings",
		Name:     ExportName(camera, w),
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode export request: %v", ErrAPI, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: build export request: %v", ErrAPI, err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("start export for %q: %w", camera, err)
	}

	var resp startExportResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: decode export response: %v", ErrAPI, err)
	}
	if resp.ExportID == "" {
		return "", fmt.Errorf("%w: export response carries no export id: %s",
			ErrAPI, strings.TrimSpace(string(body)))
	}
	return resp.ExportID, nil
}

// ListExports returns all export records currently known to Frigate.
func (c *Client) ListExports(ctx context.Context) ([]ExportRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/exports", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build exports request: %v", ErrAPI, err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}

	var records []ExportRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: decode export list: %v", ErrAPI, err)
	}
	return records, nil
}

// GetExportStatus reports the state of a single export. A record that is
// not (yet) present yields StateNotFound with a nil error.
func (c *Client) GetExportStatus(ctx context.Context, exportID string) (ExportStatus, error) {
	records, err := c.ListExports(ctx)
	if err != nil {
		return ExportStatus{}, err
	}
	for _, r := range records {
		if r.ID != exportID {
			continue
		}
		state := StateFinished
		if r.InProgress {
			state = StateInProgress
		}
		return ExportStatus{
			State:     state,
			Camera:    r.Camera,
			Name:      r.Name,
			VideoPath: r.VideoPath,
		}, nil
	}
	return ExportStatus{State: StateNotFound}, nil
}

// DeleteExport removes an export record. Deleting a record that no
// longer exists is not an error.
func (c *Client) DeleteExport(ctx context.Context, exportID string) error {
	url := fmt.Sprintf("%s/api/export/%s", c.baseURL, exportID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("%w: build delete request: %v", ErrAPI, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: delete export %s: %v", ErrAPI, exportID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: delete export %s: status %d", ErrAPI, exportID, resp.StatusCode)
	}
	return nil
}

// ListCameras returns the camera names from the Frigate configuration,
// sorted for stable iteration order.
func (c *Client) ListCameras(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/config", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build config request: %v", ErrAPI, err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}

	var cfg struct {
		Cameras map[string]json.RawMessage `json:"cameras"`
	}
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, fmt.Errorf("%w: decode frigate config: %v", ErrAPI, err)
	}

	cameras := make([]string, 0, len(cfg.Cameras))
	for name := range cfg.Cameras {
		cameras = append(cameras, name)
	}
	sort.Strings(cameras)
	return cameras, nil
}

// do executes the request and returns the body of a successful response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPI, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", ErrAPI, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s",
			ErrAPI, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
