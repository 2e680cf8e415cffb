// Package salesforce provides JWT-authenticated REST API access to Salesforce
// for the CRM records produced by accepted extraction plans.
package salesforce

import (
	"context"
	"fmt"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/ianpcook/agent-crm/internal/resilience"
)

// Client defines the Salesforce API operations used by the CRM sink.
type Client interface {
	Query(ctx context.Context, soql string, out any) error
	InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error)
	InsertCollection(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error)
	UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error
}

// CollectionResult is the outcome of a single record in a collection operation.
type CollectionResult struct {
	ID      string   `json:"id"`
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
}

// ClientOption configures the Salesforce client.
type ClientOption func(*sfClient)

// WithRateLimit sets a per-second rate limit for SF API calls.
// A burst equal to the integer portion of rps is allowed.
func WithRateLimit(rps float64) ClientOption {
	return func(c *sfClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithRetry retries throttled calls, and transient failures of queries and
// updates, up to maxAttempts attempts in total.
func WithRetry(maxAttempts int) ClientOption {
	return func(c *sfClient) {
		if maxAttempts > 1 {
			c.retry = resilience.NewRetrier(maxAttempts)
			c.retry.OnRetry = resilience.LogRetries("salesforce")
		}
	}
}

// sfClient wraps the go-salesforce/v3 Salesforce struct.
//
// go-salesforce does not accept a context, so ctx only bounds the rate
// limiter wait and retry backoff.
type sfClient struct {
	sf      *salesforce.Salesforce
	limiter *rate.Limiter
	retry   *resilience.Retrier
}

// NewClient creates a new Salesforce Client wrapping the given go-salesforce instance.
func NewClient(sf *salesforce.Salesforce, opts ...ClientOption) Client {
	c := &sfClient{sf: sf}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wait blocks until the rate limiter allows one event, or ctx is cancelled.
func (c *sfClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *sfClient) Query(ctx context.Context, soql string, out any) error {
	return c.retry.Do(ctx, resilience.IsTransient, func(ctx context.Context) error {
		if err := c.wait(ctx); err != nil {
			return eris.Wrap(err, "sf: rate limit")
		}
		if err := c.sf.Query(soql, out); err != nil {
			return eris.Wrap(err, "sf: query")
		}
		return nil
	})
}

func (c *sfClient) InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
	return resilience.Value(ctx, c.retry, resilience.IsThrottled, func(ctx context.Context) (string, error) {
		if err := c.wait(ctx); err != nil {
			return "", eris.Wrap(err, "sf: rate limit")
		}
		result, err := c.sf.InsertOne(sObjectName, record)
		if err != nil {
			return "", eris.Wrap(err, fmt.Sprintf("sf: insert %s", sObjectName))
		}
		if !result.Success {
			return "", eris.New(fmt.Sprintf("sf: insert %s failed: %v", sObjectName, result.Errors))
		}
		return result.Id, nil
	})
}

func (c *sfClient) InsertCollection(ctx context.Context, sObjectName string, records []map[string]any) ([]CollectionResult, error) {
	return resilience.Value(ctx, c.retry, resilience.IsThrottled, func(ctx context.Context) ([]CollectionResult, error) {
		if err := c.wait(ctx); err != nil {
			return nil, eris.Wrap(err, "sf: rate limit")
		}
		sfResults, err := c.sf.InsertCollection(sObjectName, records, maxBatchSize)
		if err != nil {
			return nil, eris.Wrap(err, fmt.Sprintf("sf: insert collection %s", sObjectName))
		}

		results := make([]CollectionResult, len(sfResults.Results))
		for i, r := range sfResults.Results {
			var errs []string
			for _, e := range r.Errors {
				errs = append(errs, e.Message)
			}
			results[i] = CollectionResult{
				ID:      r.Id,
				Success: r.Success,
				Errors:  errs,
			}
		}
		return results, nil
	})
}

func (c *sfClient) UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error {
	record := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		record[k] = v
	}
	record["Id"] = id
	return c.retry.Do(ctx, resilience.IsTransient, func(ctx context.Context) error {
		if err := c.wait(ctx); err != nil {
			return eris.Wrap(err, "sf: rate limit")
		}
		if err := c.sf.UpdateOne(sObjectName, record); err != nil {
			return eris.Wrap(err, fmt.Sprintf("sf: update %s %s", sObjectName, id))
		}
		return nil
	})
}
