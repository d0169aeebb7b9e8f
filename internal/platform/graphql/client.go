// Package graphql is the typed execution layer in front of the Hasura GraphQL engine.
package graphql

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mbgraphql "github.com/machinebox/graphql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const adminSecretHeader = "x-hasura-admin-secret"

var requestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "payment_relay",
		Name:      "graphql_request_duration_seconds",
		Help:      "Duration of GraphQL operations sent to the data layer.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation", "status"},
)

// RequestError is returned for every failed operation, whether the transport failed
// or the engine answered with GraphQL errors.
type RequestError struct {
	Operation string
	Err       error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("graphql operation %s: %v", e.Operation, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Executor runs a named GraphQL document and decodes the "data" member into out.
type Executor interface {
	Execute(ctx context.Context, operation, document string, vars map[string]any, out any) error
}

// Client executes documents against a single endpoint authenticated with the admin secret.
type Client struct {
	client      *mbgraphql.Client
	adminSecret string
	logger      *slog.Logger
}

// NewClient builds a Client. httpClient may be nil.
func NewClient(endpoint, adminSecret string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger = logger.With("component", "graphql_client")
	c := mbgraphql.NewClient(endpoint, mbgraphql.WithHTTPClient(httpClient))
	c.Log = func(s string) { logger.Debug(s) }
	return &Client{client: c, adminSecret: adminSecret, logger: logger}
}

func (c *Client) Execute(ctx context.Context, operation, document string, vars map[string]any, out any) error {
	req := mbgraphql.NewRequest(document)
	for k, v := range vars {
		req.Var(k, v)
	}
	if c.adminSecret != "" {
		req.Header.Set(adminSecretHeader, c.adminSecret)
	}

	start := time.Now()
	err := c.client.Run(ctx, req, out)
	status := "ok"
	if err != nil {
		status = "error"
	}
	requestDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.ErrorContext(ctx, "GraphQL operation failed", "operation", operation, "error", err)
		return &RequestError{Operation: operation, Err: err}
	}
	c.logger.DebugContext(ctx, "GraphQL operation succeeded", "operation", operation, "duration_ms", time.Since(start).Milliseconds())
	return nil
}
