package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/groveapp/grove/pkg/errdefs"
	"github.com/groveapp/grove/pkg/types"
)

// HTTPStore talks JSON over HTTP to a remote sync endpoint. It performs no
// retries itself; retry policy lives entirely in the outbox worker.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStore creates a client for the given base URL.
func NewHTTPStore(baseURL string, timeout time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPStore) Create(ctx context.Context, entityType types.EntityType, id string, payload []byte) error {
	return s.do(ctx, http.MethodPost, s.collectionURL(entityType), payload)
}

func (s *HTTPStore) Update(ctx context.Context, entityType types.EntityType, id string, payload []byte) error {
	return s.do(ctx, http.MethodPut, s.entityURL(entityType, id), payload)
}

func (s *HTTPStore) Delete(ctx context.Context, entityType types.EntityType, id string) error {
	return s.do(ctx, http.MethodDelete, s.entityURL(entityType, id), nil)
}

func (s *HTTPStore) collectionURL(entityType types.EntityType) string {
	return fmt.Sprintf("%s/v1/%ss", s.baseURL, entityType)
}

func (s *HTTPStore) entityURL(entityType types.EntityType, id string) string {
	return fmt.Sprintf("%s/v1/%ss/%s", s.baseURL, entityType, id)
}

func (s *HTTPStore) do(ctx context.Context, method, url string, payload []byte) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return errdefs.RemoteTerminal(err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		// Network failures and timeouts are retryable.
		return errdefs.RemoteTransient(err)
	}
	defer resp.Body.Close()

	return classifyStatus(resp.StatusCode, method, url)
}

// classifyStatus maps HTTP status codes onto the error taxonomy: 2xx is
// success, 408/429/5xx are transient, other 4xx are terminal (validation or
// conflict on the server).
func classifyStatus(code int, method, url string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500:
		return errdefs.RemoteTransient(fmt.Errorf("%s %s: status %d", method, url, code))
	default:
		return errdefs.RemoteTerminal(fmt.Errorf("%s %s: status %d", method, url, code))
	}
}
