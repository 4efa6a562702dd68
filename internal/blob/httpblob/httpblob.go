// Package httpblob talks to a hosted blob API (Vercel Blob compatible) over HTTPS.
package httpblob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/botboard/internal/blob"
)

const (
	DefaultBaseURL = "https://blob.vercel-storage.com"
	apiVersion     = "7"
	listPageLimit  = 1000
	defaultTimeout = 20 * time.Second
)

// Client implements blob.Store against the hosted blob REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL points the client at a different API host.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a client authenticated with the store read/write token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listResponse struct {
	Blobs   []blob.Object `json:"blobs"`
	Cursor  string        `json:"cursor"`
	HasMore bool          `json:"hasMore"`
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) List(ctx context.Context, prefix string) ([]blob.Object, error) {
	var (
		out    []blob.Object
		cursor string
	)
	for {
		q := url.Values{}
		q.Set("prefix", prefix)
		q.Set("limit", fmt.Sprint(listPageLimit))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		req, err := c.newRequest(ctx, http.MethodGet, c.baseURL+"/?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}

		var page listResponse
		if err := c.doJSON(req, &page); err != nil {
			return nil, errors.Wrap(err, "list blobs")
		}
		out = append(out, page.Blobs...)

		if !page.HasMore || page.Cursor == "" {
			return out, nil
		}
		cursor = page.Cursor
	}
}

func (c *Client) Get(ctx context.Context, u string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "get blob")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.Wrap(blob.ErrNotFound, u)
	}
	if resp.StatusCode/100 != 2 {
		return nil, errors.Errorf("get blob: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read blob body")
	}
	return body, nil
}

func (c *Client) Put(ctx context.Context, pathname string, body []byte, opts blob.PutOptions) (blob.Object, error) {
	req, err := c.newRequest(ctx, http.MethodPut, c.baseURL+"/"+strings.TrimLeft(pathname, "/"), bytes.NewReader(body))
	if err != nil {
		return blob.Object{}, err
	}
	if opts.ContentType != "" {
		req.Header.Set("x-content-type", opts.ContentType)
	}
	if opts.Access != "" {
		req.Header.Set("x-vercel-blob-access", string(opts.Access))
	}
	if opts.AddRandomSuffix {
		req.Header.Set("x-add-random-suffix", "1")
	} else {
		req.Header.Set("x-add-random-suffix", "0")
		req.Header.Set("x-allow-overwrite", "1")
	}

	var obj blob.Object
	if err := c.doJSON(req, &obj); err != nil {
		return blob.Object{}, errors.Wrapf(err, "put blob %s", pathname)
	}
	return obj, nil
}

func (c *Client) Delete(ctx context.Context, urls ...string) error {
	if len(urls) == 0 {
		return nil
	}
	payload, err := json.Marshal(map[string][]string{"urls": urls})
	if err != nil {
		return errors.Wrap(err, "encode delete request")
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/delete", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return errors.Wrap(c.doJSON(req, nil), "delete blobs")
}

func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, errors.Wrap(err, "build blob request")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("x-api-version", apiVersion)
	return req, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode/100 != 2 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(raw, out), "decode response")
}

func decodeError(status int, raw []byte) error {
	var apiErr apiError
	msg := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	if (status == http.StatusBadRequest || status == http.StatusForbidden) && strings.Contains(strings.ToLower(msg), "access") {
		return errors.Wrap(blob.ErrAccessMismatch, msg)
	}
	if status == http.StatusNotFound {
		return errors.Wrap(blob.ErrNotFound, msg)
	}
	return errors.Errorf("blob api status %d: %s", status, msg)
}
