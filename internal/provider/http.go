package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/agilefinance/boletoflow/internal/logging"
	"github.com/agilefinance/boletoflow/internal/metrics"
	"github.com/agilefinance/boletoflow/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
)

const (
	issueEndpoint   = "cobranca/emissao"
	messageEndpoint = "send-message"

	apiKeyHeader    = "X-API-KEY"
	apiSecretHeader = "X-API-SECRET"
)

// HTTPClient talks to the integration platform over HTTPS with a bounded
// per-request timeout. A timed-out call is indistinguishable from a rejected
// one: the caller must assume the provider may still have acted server-side.
type HTTPClient struct {
	baseURL   string
	apiKey    string
	apiSecret string
	client    *http.Client
	log       *logging.Logger
}

func NewHTTPClient(baseURL, apiKey, apiSecret string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		client:    &http.Client{Timeout: timeout},
		log:       logging.New("boletoflow-provider"),
	}
}

func (c *HTTPClient) IssueBoleto(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	raw, err := c.post(ctx, issueEndpoint, req)
	if err != nil {
		return nil, err
	}
	var res IssueResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, &Error{Endpoint: issueEndpoint, Err: err}
	}
	res.Raw = raw
	return &res, nil
}

func (c *HTTPClient) SendMessage(ctx context.Context, req MessageRequest) (*MessageResult, error) {
	raw, err := c.post(ctx, messageEndpoint, req)
	if err != nil {
		return nil, err
	}
	var res MessageResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, &Error{Endpoint: messageEndpoint, Err: err}
	}
	res.Raw = raw
	return &res, nil
}

func (c *HTTPClient) post(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	ctx, span := tracing.StartSpan(ctx, "provider.request",
		attribute.String("endpoint", endpoint),
	)
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Endpoint: endpoint, Err: err}
	}

	url := c.baseURL + "/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set(apiSecretHeader, c.apiSecret)

	start := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		metrics.RecordProviderRequest(endpoint, "transport_error", latency)
		c.log.WithContext(ctx).WithField("endpoint", endpoint).WithError(err).Error("provider request failed")
		return nil, &Error{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.Int64("http.latency_ms", latency.Milliseconds()),
	)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordProviderRequest(endpoint, "read_error", latency)
		return nil, &Error{Endpoint: endpoint, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := &Error{Endpoint: endpoint, Status: resp.StatusCode, Body: string(respBody)}
		tracing.SetSpanError(ctx, perr)
		metrics.RecordProviderRequest(endpoint, "rejected", latency)
		c.log.WithContext(ctx).WithFields(map[string]any{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		}).Error("provider rejected request")
		return nil, perr
	}

	metrics.RecordProviderRequest(endpoint, "ok", latency)
	c.log.WithContext(ctx).WithFields(map[string]any{
		"endpoint": endpoint,
		"status":   resp.StatusCode,
		"latency":  latency.String(),
	}).Info("provider request ok")
	return respBody, nil
}
