package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/botboard/internal/domain"
)

const dataPath = "/api/data"

// Response is the body of GET /api/data.
type Response struct {
	OK      bool                     `json:"ok"`
	Latest  *domain.DashboardPayload `json:"latest"`
	History []domain.Snapshot        `json:"history"`
	Error   string                   `json:"error,omitempty"`
}

// ErrorResponse is the state shown when a fetch fails.
func ErrorResponse(err error) Response {
	return Response{OK: false, History: []domain.Snapshot{}, Error: err.Error()}
}

// Fetcher returns the current dashboard state. It never fails: failures are reported
// inside the Response.
type Fetcher interface {
	Fetch(ctx context.Context) Response
}

// Client fetches the dashboard state from the query endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL (e.g. http://localhost:8080).
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// Fetch loads the current state. Error bodies from the server are returned as sent.
func (c *Client) Fetch(ctx context.Context) Response {
	resp, err := c.fetch(ctx)
	if err != nil {
		return ErrorResponse(err)
	}
	if resp.History == nil {
		resp.History = []domain.Snapshot{}
	}
	return resp
}

func (c *Client) fetch(ctx context.Context) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+dataPath, nil)
	if err != nil {
		return Response{}, errors.Wrap(err, "build request")
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return Response{}, errors.Wrap(err, "fetch dashboard data")
	}
	defer httpResp.Body.Close()

	var out Response
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return Response{}, errors.Wrapf(err, "decode dashboard data (status %d)", httpResp.StatusCode)
	}
	return out, nil
}
