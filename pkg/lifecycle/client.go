package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-pkgz/lgr"

	"github.com/umputun/lifebadge/pkg/status"
)

// DefaultTimeout is the per-attempt fetch timeout.
const DefaultTimeout = 5 * time.Second

// maxBodySize caps the lifecycle response body.
const maxBodySize = 64 * 1024

// FetchErrorKind classifies fetch failures.
type FetchErrorKind string

// FetchErrorKind constants.
const (
	FetchTransport  FetchErrorKind = "transport"   // connection refused, timeout, dns
	FetchHTTPStatus FetchErrorKind = "http-status" // non-2xx response
	FetchDecode     FetchErrorKind = "decode"      // body is not a lifecycle object
)

// FetchError is returned for every failed fetch.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int // set for FetchHTTPStatus
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchHTTPStatus:
		return fmt.Sprintf("lifecycle endpoint %s returned %d", e.URL, e.StatusCode)
	case FetchDecode:
		return fmt.Sprintf("invalid lifecycle response from %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("lifecycle endpoint %s unreachable: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// retryable reports whether another attempt may succeed.
func (e *FetchError) retryable() bool {
	switch e.Kind {
	case FetchTransport:
		return true
	case FetchHTTPStatus:
		return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
	default:
		return false
	}
}

// ClientOpts holds client configuration.
type ClientOpts struct {
	Timeout       time.Duration // per-attempt timeout, DefaultTimeout if zero
	Retries       int           // extra attempts after the first one
	RetryInterval time.Duration // initial backoff interval, 500ms if zero
	HTTPClient    *http.Client  // optional, mostly for tests
	Logger        lgr.L         // optional, lgr.Default() if nil
}

// Client fetches lifecycle status over http.
type Client struct {
	http          *http.Client
	timeout       time.Duration
	retries       int
	retryInterval time.Duration
	log           lgr.L
}

// NewClient makes a lifecycle client.
func NewClient(opts ClientOpts) *Client {
	c := &Client{
		http:          opts.HTTPClient,
		timeout:       opts.Timeout,
		retries:       opts.Retries,
		retryInterval: opts.RetryInterval,
		log:           opts.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.retries < 0 {
		c.retries = 0
	}
	if c.retryInterval <= 0 {
		c.retryInterval = 500 * time.Millisecond
	}
	if c.log == nil {
		c.log = lgr.Default()
	}
	return c
}

// Fetch reads the lifecycle status of the target. any failure is returned as *FetchError.
func (c *Client) Fetch(ctx context.Context, t Target) (status.LifecycleStatus, error) {
	url := t.URL()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval
	bo.MaxElapsedTime = 0 // bounded by retry count

	var res status.LifecycleStatus
	attempt := 0
	op := func() error {
		attempt++
		st, err := c.fetchOnce(ctx, url)
		if err != nil {
			var fe *FetchError
			if errors.As(err, &fe) && !fe.retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		res = st
		return nil
	}
	notify := func(err error, next time.Duration) {
		c.log.Logf("[DEBUG] fetch attempt %d for %s failed: %v, retry in %s", attempt, url, err, next)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.retries)), ctx), notify)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return status.LifecycleStatus{}, fe
		}
		return status.LifecycleStatus{}, &FetchError{Kind: FetchTransport, URL: url, Err: err}
	}
	return res, nil
}

func (c *Client) fetchOnce(ctx context.Context, url string) (status.LifecycleStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return status.LifecycleStatus{}, &FetchError{Kind: FetchTransport, URL: url, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return status.LifecycleStatus{}, &FetchError{Kind: FetchTransport, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return status.LifecycleStatus{}, &FetchError{Kind: FetchHTTPStatus, URL: url, StatusCode: resp.StatusCode}
	}

	var st status.LifecycleStatus
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&st); err != nil {
		return status.LifecycleStatus{}, &FetchError{Kind: FetchDecode, URL: url, Err: err}
	}
	c.log.Logf("[DEBUG] lifecycle %s: state=%q reason=%q", url, st.State, st.Reason)
	return st, nil
}
