package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/entrhq/timelog/pkg/config"
	"github.com/entrhq/timelog/pkg/logging"
	"github.com/entrhq/timelog/pkg/session"
	"github.com/entrhq/timelog/pkg/types"
)

var debugLog = logging.MustNew("submit")

// Request headers the endpoint expects from its own XHR submit.
const (
	HeaderAccept      = "application/json, text/javascript, */*; q=0.01"
	HeaderRequestedBy = "XMLHttpRequest"
	HeaderNoCache     = "no-cache"
)

// maxErrorBody bounds how much of a failed response is kept.
const maxErrorBody = 64 << 10

// Response is the endpoint's JSON reply. Status applies to the whole batch.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// TransportError reports a non-2xx reply.
type TransportError struct {
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("submission rejected with status %d: %s", e.StatusCode, e.Body)
}

// Client posts envelopes to the submission endpoint.
type Client struct {
	httpClient *http.Client
	url        string
}

// NewClient creates a client posting to url. A nil httpClient gets a
// default one bounded by timeout.
func NewClient(httpClient *http.Client, url string, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{httpClient: httpClient, url: url}
}

// URL returns the endpoint the client posts to.
func (c *Client) URL() string {
	return c.url
}

// Submit sends env in a single POST. There are no retries.
func (c *Client) Submit(ctx context.Context, env *types.SubmissionEnvelope, cookies []session.Cookie, gate config.BasicCredential) (*Response, error) {
	body, contentType, err := Encode(env)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", HeaderAccept)
	req.Header.Set("X-Requested-With", HeaderRequestedBy)
	req.Header.Set("Cache-Control", HeaderNoCache)
	req.Header.Set("Pragma", HeaderNoCache)
	if !gate.Empty() {
		req.Header.Set("Authorization", gate.Header())
	}
	if len(cookies) > 0 {
		req.Header.Set("Cookie", session.HeaderValue(cookies))
	}

	debugLog.Infof("posting %d rows to %s", len(env.Rows), c.url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submission request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		debugLog.Errorf("submission failed: %d %s", resp.StatusCode, raw)
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode submission response: %w", err)
	}
	debugLog.Infof("submission status %q: %s", result.Status, result.Message)
	return &result, nil
}
