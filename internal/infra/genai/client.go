// Package genai provides the HTTP client for the hosted generative
// content service used to draft business descriptions and listings.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dealspot/dealspot-api/internal/domain"
	"github.com/dealspot/dealspot-api/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("genai")

// Client calls the content generation API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewClient creates a content generation client.
func NewClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
	}
}

type completionRequest struct {
	CompanyName string `json:"company_name"`
	Category    string `json:"category"`
	Title       string `json:"title,omitempty"`
	Format      string `json:"format"` // "text" or "json"
}

type completionResponse struct {
	Text string `json:"text"`
}

// GenerateDescription asks the model for a free-text description.
// An empty completion is an error; the caller decides the fallback.
func (c *Client) GenerateDescription(ctx context.Context, req *domain.ContentRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "GenAI.GenerateDescription")
	defer span.End()
	span.SetAttributes(attribute.String("company", req.CompanyName))

	text, err := c.complete(ctx, &completionRequest{
		CompanyName: req.CompanyName,
		Category:    req.Category,
		Title:       req.Title,
		Format:      "text",
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", &domain.ErrExternalService{Service: "genai", Err: fmt.Errorf("empty completion")}
	}
	return text, nil
}

// GenerateListing asks the model for a JSON object with title and
// description fields. A malformed or incomplete object is an error.
func (c *Client) GenerateListing(ctx context.Context, req *domain.ContentRequest) (*domain.GeneratedListing, error) {
	ctx, span := tracer.Start(ctx, "GenAI.GenerateListing")
	defer span.End()
	span.SetAttributes(attribute.String("company", req.CompanyName))

	text, err := c.complete(ctx, &completionRequest{
		CompanyName: req.CompanyName,
		Category:    req.Category,
		Title:       req.Title,
		Format:      "json",
	})
	if err != nil {
		return nil, err
	}

	var listing domain.GeneratedListing
	if err := json.Unmarshal([]byte(text), &listing); err != nil {
		return nil, &domain.ErrExternalService{Service: "genai", Err: fmt.Errorf("malformed listing payload: %w", err)}
	}
	if listing.Title == "" || listing.Description == "" {
		return nil, &domain.ErrExternalService{Service: "genai", Err: fmt.Errorf("incomplete listing payload")}
	}
	return &listing, nil
}

// complete runs one completion call behind the circuit breaker and
// retry policy.
func (c *Client) complete(ctx context.Context, req *completionRequest) (string, error) {
	var out completionResponse

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := json.Marshal(req)
			if err != nil {
				return err
			}

			url := fmt.Sprintf("%s/v1/complete", c.baseURL)
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			httpReq.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("content API returned status %d", resp.StatusCode)
			}
			return json.NewDecoder(resp.Body).Decode(&out)
		})
	})

	if err != nil {
		return "", &domain.ErrExternalService{Service: "genai", Err: err}
	}
	return out.Text, nil
}
