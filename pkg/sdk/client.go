package fedcat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	apiPrefix    = "/api/v1"
	maxErrorBody = 64 << 10
)

// Client is the fedcat API entry point. It is safe for concurrent use.
type Client struct {
	base   *url.URL
	http   *http.Client
	apiKey string
	obs    *observer
}

// New creates a Client for the server at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) (*Client, error) {
	cfg := &clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("fedcat: parse base url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("fedcat: base url must be an absolute http(s) url, got %q", baseURL)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}
	return &Client{base: u, http: hc, apiKey: cfg.apiKey, obs: obs}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values) (*http.Request, error) {
	u := c.base.JoinPath(path)
	u.RawQuery = q.Encode()
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("fedcat: build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// send executes req and records the exchange under op. Statuses below 300, plus
// any listed in accept, return the open response; others come back as *APIError
// with the body closed.
func (c *Client) send(op string, req *http.Request, accept ...int) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		err = fmt.Errorf("fedcat: %s %s: %w", req.Method, req.URL.Path, err)
		c.obs.exchange(op, 0, start, err)
		return nil, err
	}
	if resp.StatusCode < http.StatusMultipleChoices || slices.Contains(accept, resp.StatusCode) {
		c.obs.exchange(op, resp.StatusCode, start, nil)
		return resp, nil
	}
	defer resp.Body.Close()
	err = decodeError(resp)
	c.obs.exchange(op, resp.StatusCode, start, err)
	return nil, err
}

func (c *Client) getJSON(ctx context.Context, op, path string, q url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, q)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(op, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("fedcat: decode %s: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		apiErr.Code = codeRangeNotSatisfiable
		apiErr.Message = "offset is past the end of the resource"
		return apiErr
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Code == "" {
		apiErr.Code = "http_" + strconv.Itoa(resp.StatusCode)
		apiErr.Message = strings.TrimSpace(string(body))
		return apiErr
	}
	apiErr.Code, apiErr.Message = payload.Code, payload.Message
	return apiErr
}
