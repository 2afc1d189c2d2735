// Package worker is the Worker Client: it long-polls the Dispatch Server for jobs of the types it
// handles, runs the matching handler and reports the outcome.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/target/case-dispatch/internal/domain/model"
)

const (
	maxResponseBodyBytes  = model.MaxDocumentBytes
	maxErrorBodyBytes     = 4 * 1024
	defaultRequestTimeout = 30 * time.Second
)

// StatusError is returned when the Dispatch Server answers with an unexpected status.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

// Retryable reports whether repeating the request may succeed.
func (e *StatusError) Retryable() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// IsNetworkError reports whether err came from the transport rather than the server: timeouts,
// refused connections and the like.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL  string // Required: Dispatch Server root URL
	WorkerID string // Required
	// HTTPClient defaults to a client without a global timeout; every call sets its own deadline.
	HTTPClient *http.Client
	// RequestTimeout bounds completion and event calls, and is added on top of the poll wait.
	RequestTimeout time.Duration
}

// Client talks to the Dispatch Server.
type Client struct {
	base     *url.URL
	workerID string
	http     *http.Client
	timeout  time.Duration
}

// NewClient validates opts and returns a Client.
func NewClient(opts ClientOptions) (*Client, error) {
	if strings.TrimSpace(opts.WorkerID) == "" {
		return nil, errors.New("worker id is required")
	}
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https, got %q", opts.BaseURL)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{base: base, workerID: opts.WorkerID, http: hc, timeout: timeout}, nil
}

// WorkerID returns the identity reported with every claim and completion.
func (c *Client) WorkerID() string { return c.workerID }

// Next claims the next job among types, long-polling up to wait. It returns (nil, nil) when no job
// became available.
func (c *Client) Next(ctx context.Context, types []string, wait time.Duration) (*model.Assignment, error) {
	q := url.Values{}
	q.Set("worker_id", c.workerID)
	if len(types) > 0 {
		q.Set("types", strings.Join(types, ","))
	}
	if wait > 0 {
		q.Set("wait", strconv.FormatInt(int64(wait/time.Millisecond), 10)+"ms")
	}

	ctx, cancel := context.WithTimeout(ctx, wait+c.timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "/job/next?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	defer drainClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
	default:
		return nil, statusError("claim next job", resp)
	}

	var job *model.Assignment
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodyBytes)).Decode(&job); err != nil {
		return nil, fmt.Errorf("decode claimed job: %w", err)
	}
	return job, nil
}

// Complete reports a terminal outcome for jobID. The server accepts repeated completions, so
// callers may retry freely.
func (c *Client) Complete(ctx context.Context, jobID int64, status model.JobStatus, result any) error {
	body := map[string]any{
		"job_id":    jobID,
		"worker_id": c.workerID,
		"status":    status,
		"result":    result,
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodPost, "/job/complete", body)
	if err != nil {
		return fmt.Errorf("complete job %d: %w", jobID, err)
	}
	defer drainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return statusError(fmt.Sprintf("complete job %d", jobID), resp)
	}
	return nil
}

// Emit posts an event to the Dispatch Server and returns the id of the queued job.
func (c *Client) Emit(ctx context.Context, eventType string, payload any, priority int) (int64, error) {
	body := map[string]any{"event_type": eventType, "payload": payload}
	if priority != 0 {
		body["priority"] = priority
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodPost, "/event", body)
	if err != nil {
		return 0, fmt.Errorf("emit %s: %w", eventType, err)
	}
	defer drainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return 0, statusError("emit "+eventType, resp)
	}
	var ack struct {
		JobID int64 `json:"job_id"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodyBytes)).Decode(&ack); err != nil {
		return 0, fmt.Errorf("decode emit response: %w", err)
	}
	return ack.JobID, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

func statusError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
}

// drainClose lets the transport reuse the connection.
func drainClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxResponseBodyBytes))
	_ = body.Close()
}
