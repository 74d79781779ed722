// Package marketplace is the REST client of the remote catalog, cart and
// order service.
package marketplace

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

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	breakerMaxFailures = 5
	breakerOpenTimeout = 30 * time.Second
)

type Client struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[rawResponse]
	log     *zap.Logger
}

type rawResponse struct {
	status int
	body   []byte
}

// NewClient returns a client for the service rooted at baseURL, e.g.
// http://localhost:8000/api.
func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
	c.breaker = gobreaker.NewCircuitBreaker[rawResponse](gobreaker.Settings{
		Name:        "marketplace",
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

// do performs one request. Transport failures become *domain.NetworkError and
// non-2xx responses become *domain.RemoteRejection.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, headers http.Header, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		payload = b
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	resp, err := c.breaker.Execute(func() (rawResponse, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, body)
		if err != nil {
			return rawResponse{}, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			for _, vv := range v {
				req.Header.Add(k, vv)
			}
		}

		res, err := c.client.Do(req)
		if err != nil {
			return rawResponse{}, err
		}
		defer res.Body.Close()

		data, err := io.ReadAll(res.Body)
		if err != nil {
			return rawResponse{}, err
		}
		return rawResponse{status: res.StatusCode, body: data}, nil
	})
	if err != nil {
		c.log.Warn("marketplace unreachable", zap.String("op", op), zap.String("method", method), zap.String("path", path), zap.Error(err))
		return &domain.NetworkError{Op: op, Err: err}
	}

	if resp.status >= http.StatusBadRequest {
		return &domain.RemoteRejection{Op: op, StatusCode: resp.status, Message: errorDetail(resp.body)}
	}

	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// errorDetail extracts the human readable message of an error body. The
// service answers {"detail": "..."}; validation failures carry a list.
func errorDetail(body []byte) string {
	var e struct {
		Detail  json.RawMessage `json:"detail"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}

	if len(e.Detail) > 0 {
		var s string
		if err := json.Unmarshal(e.Detail, &s); err == nil {
			return s
		}
		var list []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(e.Detail, &list); err == nil {
			msgs := make([]string, 0, len(list))
			for _, item := range list {
				if item.Msg != "" {
					msgs = append(msgs, item.Msg)
				}
			}
			return strings.Join(msgs, "; ")
		}
	}
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// Health reports whether the service answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "health check", http.MethodGet, "/health", nil, nil, nil, nil)
}
