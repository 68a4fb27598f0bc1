// Package dcarbon provides a client for the upstream DCarbon REST API
// (services.dcarbon.solutions). It is the only place the BFF talks HTTP
// to the upstream; every call carries the session user's bearer token.
package dcarbon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gloriousnetworker/dcarbon-bff-go/internal/domain"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/infra/resilience"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("dcarbon")

// envelope is the upstream response wrapper. A 2xx with status other
// than "success" is still a rejection.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client wraps HTTP calls to the DCarbon API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewClient creates a DCarbon API client. Concurrent upstream calls are
// bounded by cfg.MaxConcurrency.
func NewClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 50
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		bulkhead:   resilience.NewBulkhead(maxConcurrency),
		cfg:        cfg,
		logger:     logger,
	}
}

// call executes one authenticated JSON request through the breaker and
// retry policy, decodes the envelope, and unmarshals envelope.data into
// out when out is non-nil. Not-found and upstream rejections are
// permanent: they are returned without retrying.
func (c *Client) call(ctx context.Context, op, method, path string, creds port.Credentials, payload, out any) error {
	ctx, span := tracer.Start(ctx, "DCarbon."+op)
	defer span.End()
	span.SetAttributes(attribute.String("user.id", creds.UserID))

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return &domain.ErrTimeout{Operation: op}
	}
	defer c.bulkhead.Release()

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			return c.doRequest(ctx, op, method, path, creds, payload, out)
		})
	})
	if err != nil {
		var notFound *domain.ErrNotFound
		var rejected *domain.ErrUpstreamRejected
		var unauthorized *domain.ErrUnauthorized
		if errors.As(err, &notFound) || errors.As(err, &rejected) || errors.As(err, &unauthorized) {
			return err
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &domain.ErrCircuitOpen{Service: "dcarbon"}
		}
		return &domain.ErrExternalService{Service: "dcarbon/" + op, Err: err}
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, op, method, path string, creds port.Credentials, payload, out any) error {
	var body io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return resilience.Permanent(err)
		}
		body = bytes.NewReader(jsonBody)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return resilience.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AuthToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("dcarbon: request failed",
			zap.String("op", op),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return resilience.Permanent(&domain.ErrNotFound{Resource: op, ID: creds.UserID})
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return resilience.Permanent(&domain.ErrUnauthorized{Message: "upstream rejected credentials"})
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.Warn("dcarbon: non-2xx response",
			zap.String("op", op),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return fmt.Errorf("dcarbon returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.Status != "success" {
		c.logger.Warn("dcarbon: upstream rejected",
			zap.String("op", op),
			zap.String("status", env.Status),
			zap.String("message", env.Message),
		)
		return resilience.Permanent(&domain.ErrUpstreamRejected{Operation: op, Message: env.Message})
	}

	c.logger.Debug("dcarbon: request OK",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
	)

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return resilience.Permanent(fmt.Errorf("decode %s data: %w", op, err))
		}
	}
	return nil
}

// doMultipart uploads a file as multipart/form-data. Used only for the
// facility financial-agreement attach, which the upstream accepts as a
// single field named "file".
func (c *Client) doMultipart(ctx context.Context, op, method, path string, creds port.Credentials, upload *domain.AgreementUpload) error {
	ctx, span := tracer.Start(ctx, "DCarbon."+op)
	defer span.End()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", upload.FileName)
	if err != nil {
		return err
	}
	if _, err := part.Write(upload.Content); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+creds.AuthToken)
	req.Header.Set("Content-Type", w.FormDataContentType())

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return &domain.ErrTimeout{Operation: op}
	}
	defer c.bulkhead.Release()

	_, err = c.cb.Execute(func() (any, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("dcarbon returned status %d: %s", resp.StatusCode, string(respBody))
		}
		var env envelope
		if err := json.Unmarshal(respBody, &env); err != nil {
			return nil, fmt.Errorf("decode envelope: %w", err)
		}
		if env.Status != "success" {
			return nil, &domain.ErrUpstreamRejected{Operation: op, Message: env.Message}
		}
		return nil, nil
	})
	if err != nil {
		var rejected *domain.ErrUpstreamRejected
		if errors.As(err, &rejected) {
			return err
		}
		c.logger.Error("dcarbon: multipart upload failed",
			zap.String("op", op),
			zap.String("path", path),
			zap.Error(err),
		)
		return &domain.ErrExternalService{Service: "dcarbon/" + op, Err: err}
	}
	return nil
}
