// Package httpclient builds the HTTP clients used for artifact fetches.
package httpclient

import (
	"fmt"
	"net/http"
	"time"
)

// ClientConfig configures an artifact-fetching HTTP client.
type ClientConfig struct {
	Timeout         time.Duration
	FollowRedirects bool
	MaxRedirects    int
}

// DefaultConfig returns the configuration used for artifact fetches when the
// caller has no opinion.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		Timeout:         10 * time.Second,
		FollowRedirects: true,
		MaxRedirects:    5,
	}
}

// NewClient creates an HTTP client with timeout enforcement and a bounded
// redirect policy. Artifact hosts are static file servers; a redirect chain
// longer than a handful of hops means a misconfigured base URL, not data.
func NewClient(config ClientConfig) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	client := &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
	}

	if !config.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else if config.MaxRedirects > 0 {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= config.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", config.MaxRedirects)
			}
			return nil
		}
	}

	return client
}

// NewArtifactClient creates a client tuned for static artifact fetches with
// the given per-request timeout.
func NewArtifactClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return NewClient(ClientConfig{
		Timeout:         timeout,
		FollowRedirects: true,
		MaxRedirects:    5,
	})
}
