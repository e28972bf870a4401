// Package remote implements the lorebook client used while a user is logged
// in. Every operation is a single JSON request against the lorebook service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mrlokans/loremaster/internal/entities"
)

// Client talks to the lorebook service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	token      func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client. The client is copied, not
// modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds every request. Zero leaves requests bounded only by
// the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithTokenSource supplies the bearer token sent with each request. An
// empty token sends no Authorization header.
func WithTokenSource(token func() string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

type activeResponse struct {
	ActiveID *string `json:"activeId"`
}

type createRequest struct {
	Name    string           `json:"name"`
	Entries entities.Entries `json:"entries"`
}

type renameRequest struct {
	Name string `json:"name"`
}

func (c *Client) FetchLibrary(ctx context.Context) ([]entities.LibraryRecord, error) {
	var library []entities.LibraryRecord
	if err := c.do(ctx, http.MethodGet, "/lorebooks", nil, &library); err != nil {
		return nil, err
	}
	if library == nil {
		library = []entities.LibraryRecord{}
	}
	return library, nil
}

// FetchActiveID returns the active book id, or "" when the service has none.
func (c *Client) FetchActiveID(ctx context.Context) (string, error) {
	var resp activeResponse
	if err := c.do(ctx, http.MethodGet, "/active-lorebook", nil, &resp); err != nil {
		return "", err
	}
	if resp.ActiveID == nil {
		return "", nil
	}
	return *resp.ActiveID, nil
}

func (c *Client) SetActiveID(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/active-lorebook/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ClearActiveID(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/active-lorebook", nil, nil)
}

func (c *Client) LoadBook(ctx context.Context, id string) (*entities.Book, error) {
	var book entities.Book
	if err := c.do(ctx, http.MethodGet, bookPath(id), nil, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *Client) CreateLorebook(ctx context.Context, name string, initial []entities.Entry) (*entities.Book, error) {
	body := createRequest{Name: name, Entries: initial}
	var book entities.Book
	if err := c.do(ctx, http.MethodPost, "/lorebooks", body, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *Client) RenameLorebook(ctx context.Context, id, name string) (*entities.LibraryRecord, error) {
	var record entities.LibraryRecord
	if err := c.do(ctx, http.MethodPatch, bookPath(id), renameRequest{Name: name}, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) DeleteLorebook(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, bookPath(id), nil, nil)
}

func (c *Client) AddEntry(ctx context.Context, id string, entry entities.Entry) (*entities.EntryMutation, error) {
	var mutation entities.EntryMutation
	if err := c.do(ctx, http.MethodPost, bookPath(id)+"/entries", entry, &mutation); err != nil {
		return nil, err
	}
	return &mutation, nil
}

func (c *Client) UpdateEntry(ctx context.Context, id string, entry entities.Entry) (*entities.EntryMutation, error) {
	var mutation entities.EntryMutation
	if err := c.do(ctx, http.MethodPut, entryPath(id, entry.UID), entry, &mutation); err != nil {
		return nil, err
	}
	return &mutation, nil
}

func (c *Client) DeleteEntry(ctx context.Context, id string, uid int64) (*entities.EntryMutation, error) {
	var mutation entities.EntryMutation
	if err := c.do(ctx, http.MethodDelete, entryPath(id, uid), nil, &mutation); err != nil {
		return nil, err
	}
	return &mutation, nil
}

func bookPath(id string) string {
	return "/lorebooks/" + url.PathEscape(id)
}

func entryPath(id string, uid int64) string {
	return bookPath(id) + "/entries/" + strconv.FormatInt(uid, 10)
}

// do sends one request and decodes a 2xx body into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: failed to read response: %w: %w", method, path, ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w: %w", method, path, ErrTransport, err)
	}
	return nil
}

// errorMessage prefers the body's detail, then message, then the status text.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		var detail string
		if len(payload.Detail) > 0 && json.Unmarshal(payload.Detail, &detail) == nil && detail != "" {
			return detail
		}
		if len(payload.Detail) > 0 && string(payload.Detail) != "null" {
			return string(payload.Detail)
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "HTTP " + strconv.Itoa(status)
}
