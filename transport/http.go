package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang/glog"

	"github.com/xsp-lib/xsp/errortypes"
)

const defaultFetchTimeout = 2 * time.Second

// Config tunes the HTTP transport.
type Config struct {
	// FetchTimeoutMS bounds one hop fetch end to end (connect through body read).
	FetchTimeoutMS int `mapstructure:"fetch_timeout_ms"`
	MaxIdleConns   int `mapstructure:"max_idle_conns"`
	// MaxBodyBytes caps how much of an upstream body is read; oversized
	// responses fail the fetch rather than ballooning memory.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// HTTP is the production Transport. Each Fetch is bounded by the configured
// timeout unless the caller's context imposes a tighter deadline.
type HTTP struct {
	client       *http.Client
	timeout      time.Duration
	maxBodyBytes int64
}

func NewHTTP(cfg Config) *HTTP {
	timeout := time.Duration(cfg.FetchTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 10
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &HTTP{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:    maxIdle,
				IdleConnTimeout: 65 * time.Second,
			},
		},
		timeout:      timeout,
		maxBodyBytes: maxBody,
	}
}

func (t *HTTP) Fetch(ctx context.Context, url string) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &errortypes.Transport{Message: fmt.Sprintf("invalid fetch url %q: %v", url, err)}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		glog.Warningf("Fetch of %s failed: %v", url, err)
		return nil, &errortypes.Transport{Message: fmt.Sprintf("fetch %q: %v", url, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		glog.Warningf("Fetch of %s returned status %d", url, resp.StatusCode)
		return nil, &errortypes.Transport{Message: fmt.Sprintf("fetch %q: upstream status %d", url, resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBodyBytes+1))
	if err != nil {
		return nil, &errortypes.Transport{Message: fmt.Sprintf("fetch %q: reading body: %v", url, err)}
	}
	if int64(len(body)) > t.maxBodyBytes {
		return nil, &errortypes.Transport{Message: fmt.Sprintf("fetch %q: body exceeds %d bytes", url, t.maxBodyBytes)}
	}
	return body, nil
}
