package counter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Endpoint is the path of the counter API relative to the backend base URL.
const Endpoint = "/api/counter"

var (
	// ErrReadBody wraps failures while reading a successful response body.
	ErrReadBody = errors.New("read body")
	// ErrNotANumber wraps bodies that are not a decimal unsigned 32-bit integer.
	ErrNotANumber = errors.New("not a number")
)

// StatusError reports a response whose status is not 2xx.
type StatusError struct {
	Code int
	Text string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d (%s)", e.Code, e.Text)
}

// Fetcher retrieves the current counter value.
type Fetcher interface {
	Fetch(ctx context.Context) (uint32, error)
}

// Client fetches the counter over HTTP with POST <BaseURL>/api/counter.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a Client for the backend at baseURL, e.g.
// "http://127.0.0.1:3000". A trailing slash is ignored.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimSuffix(baseURL, "/"), HTTP: http.DefaultClient}
}

// Fetch posts an empty body to the counter endpoint and parses the response
// text. Transport errors are returned as is; the other failure kinds are
// *StatusError, ErrReadBody and ErrNotANumber.
func (cl *Client) Fetch(ctx context.Context) (uint32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cl.BaseURL+Endpoint, http.NoBody)
	if err != nil {
		return 0, err
	}
	hc := cl.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{Code: resp.StatusCode, Text: statusText(resp)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrReadBody, err)
	}
	return Parse(string(body))
}

// Parse reads s as a decimal unsigned 32-bit integer. Surrounding whitespace
// and signs are rejected.
func Parse(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNotANumber, err)
	}
	return uint32(n), nil
}

func statusText(resp *http.Response) string {
	if text, ok := strings.CutPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); ok {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
