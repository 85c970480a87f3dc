// Package docstore provides the HTTP client for the remote document
// store backing the directory. Collections hold JSON documents keyed
// by entity ID; writes are merge-upserts and reads return whole
// collections, from which the watcher derives snapshots.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/dealspot/dealspot-api/internal/domain"
	"github.com/dealspot/dealspot-api/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("docstore")

// Collection names used by the platform.
const (
	CollectionBusinesses      = "businesses"
	CollectionCoupons         = "coupons"
	CollectionCompanyRequests = "companyRequests"
	CollectionClaimRequests   = "claimRequests"
)

// Client wraps HTTP calls to the document store API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	serviceKey string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bh         *resilience.Bulkhead
	logger     *zap.Logger
}

// NewClient creates a document store client. Concurrent calls are
// capped at cfg.MaxConcurrency so the watcher and request handlers
// cannot flood the upstream together.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		serviceKey: serviceKey,
		cb:         cb,
		cfg:        cfg,
		bh:         resilience.NewBulkhead(cfg.MaxConcurrency),
		logger:     logger,
	}
}

func (c *Client) setHeaders(req *http.Request, prefer string) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceKey))
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
}

// List fetches every document in a collection.
func (c *Client) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "Docstore.List")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	if err := c.bh.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.bh.Release()

	var docs []json.RawMessage

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			u := fmt.Sprintf("%s/v1/%s?select=*", c.baseURL, url.PathEscape(collection))
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return err
			}
			c.setHeaders(req, "")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				c.logger.Error("docstore: list request failed",
					zap.String("collection", collection),
					zap.Error(err),
				)
				return err
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				c.logger.Warn("docstore: list non-2xx",
					zap.String("collection", collection),
					zap.Int("status", resp.StatusCode),
					zap.String("body", string(body)),
				)
				return fmt.Errorf("docstore GET %s returned %d: %s", collection, resp.StatusCode, string(body))
			}

			docs = docs[:0]
			if err := json.Unmarshal(body, &docs); err != nil {
				return fmt.Errorf("failed to decode %s collection: %w", collection, err)
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "docstore", Err: err}
	}
	return docs, nil
}

// Upsert writes a document into a collection, merging with any
// existing document with the same ID.
func (c *Client) Upsert(ctx context.Context, collection, id string, doc any) error {
	ctx, span := tracer.Start(ctx, "Docstore.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.String("doc.id", id),
	)

	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	if err := c.bh.Acquire(ctx); err != nil {
		return err
	}
	defer c.bh.Release()

	_, err = c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			u := fmt.Sprintf("%s/v1/%s", c.baseURL, url.PathEscape(collection))
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
			if err != nil {
				return err
			}
			c.setHeaders(req, "resolution=merge-duplicates")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				c.logger.Error("docstore: upsert request failed",
					zap.String("collection", collection),
					zap.String("doc_id", id),
					zap.Error(err),
				)
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				body, _ := io.ReadAll(resp.Body)
				c.logger.Warn("docstore: upsert non-2xx",
					zap.String("collection", collection),
					zap.String("doc_id", id),
					zap.Int("status", resp.StatusCode),
					zap.String("body", string(body)),
				)
				return fmt.Errorf("docstore POST %s returned %d: %s", collection, resp.StatusCode, string(body))
			}

			c.logger.Debug("docstore: upsert OK",
				zap.String("collection", collection),
				zap.String("doc_id", id),
			)
			return nil
		})
	})

	if err != nil {
		return &domain.ErrRemoteWriteFailed{Collection: collection, Err: err}
	}
	return nil
}

// Delete removes a document from a collection by ID.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	ctx, span := tracer.Start(ctx, "Docstore.Delete")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.String("doc.id", id),
	)

	if err := c.bh.Acquire(ctx); err != nil {
		return err
	}
	defer c.bh.Release()

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			u := fmt.Sprintf("%s/v1/%s?id=eq.%s", c.baseURL, url.PathEscape(collection), url.QueryEscape(id))
			req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
			if err != nil {
				return err
			}
			c.setHeaders(req, "")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				c.logger.Error("docstore: delete request failed",
					zap.String("collection", collection),
					zap.String("doc_id", id),
					zap.Error(err),
				)
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				body, _ := io.ReadAll(resp.Body)
				c.logger.Warn("docstore: delete non-2xx",
					zap.String("collection", collection),
					zap.String("doc_id", id),
					zap.Int("status", resp.StatusCode),
					zap.String("body", string(body)),
				)
				return fmt.Errorf("docstore DELETE %s returned %d: %s", collection, resp.StatusCode, string(body))
			}

			c.logger.Debug("docstore: delete OK",
				zap.String("collection", collection),
				zap.String("doc_id", id),
			)
			return nil
		})
	})

	if err != nil {
		return &domain.ErrRemoteWriteFailed{Collection: collection, Err: err}
	}
	return nil
}
