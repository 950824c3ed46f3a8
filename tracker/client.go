package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/clinisight/agent-orchestrator/config"
	"github.com/clinisight/agent-orchestrator/services"
	"go.uber.org/zap"
)

// Issue is a work item to create in the downstream tracker.
type Issue struct {
	ProjectKey  string   `json:"projectKey"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	IssueType   string   `json:"issueType"`
	Labels      []string `json:"labels,omitempty"`
	ParentKey   string   `json:"parentKey,omitempty"`
}

// CreatedIssue is the tracker's acknowledgement of a created work item.
type CreatedIssue struct {
	Key  string `json:"key"`
	ID   string `json:"id"`
	Self string `json:"self"`
}

// Client talks to the downstream issue tracker REST API. All calls are
// bounded: a fixed retry budget with exponential backoff, honoring the
// server's Retry-After header on throttling responses.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	logger     *zap.Logger
}

// NewClient creates a tracker client. Returns nil when no base URL is
// configured; callers treat a nil client as tracker writes disabled.
func NewClient(cfg config.TrackerConfig, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		logger.Info("tracker base URL not configured, tracker writes disabled")
		return nil
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
}

// CreateIssue creates one work item. Throttling (429) and server errors (5xx)
// are retried with exponential backoff up to the retry budget; 4xx responses
// other than 429 fail immediately since retrying them cannot succeed.
func (c *Client) CreateIssue(ctx context.Context, issue *Issue) (*CreatedIssue, error) {
	body, err := json.Marshal(issue)
	if err != nil {
		return nil, services.WrapInternal("failed to encode issue", err)
	}

	var created CreatedIssue
	err = c.do(ctx, http.MethodPost, "/rest/api/3/issue", body, &created)
	if err != nil {
		return nil, err
	}

	c.logger.Info("tracker issue created",
		zap.String("key", created.Key),
		zap.String("project", issue.ProjectKey))
	return &created, nil
}

// GetIssue fetches one work item by key. Returns a not_found domain error when
// the tracker has no such issue.
func (c *Client) GetIssue(ctx context.Context, key string) (*CreatedIssue, error) {
	var issue CreatedIssue
	err := c.do(ctx, http.MethodGet, "/rest/api/3/issue/"+key, nil, &issue)
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt, lastErr)
			c.logger.Debug("retrying tracker request",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return services.NewDomainError(services.ErrorTypeExternal, "tracker request cancelled", ctx.Err())
			}
		}

		retryable, err := c.attempt(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return services.NewDomainError(services.ErrorTypeExternal, "tracker retry budget exhausted", lastErr)
}

// attempt performs one request. The bool reports whether the failure is worth
// retrying.
func (c *Client) attempt(ctx context.Context, method, path string, body []byte, out any) (bool, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, services.WrapInternal("failed to build tracker request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, services.NewDomainError(services.ErrorTypeExternal, "tracker request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return false, services.NewDomainError(services.ErrorTypeExternal, "failed to decode tracker response", err)
			}
		}
		return false, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, services.NewDomainError(services.ErrorTypeNotFound, "tracker issue not found", nil)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, c.statusError(resp)
	default:
		return false, c.statusError(resp)
	}
}

func (c *Client) statusError(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := services.NewDomainError(services.ErrorTypeExternal,
		fmt.Sprintf("tracker returned status %d", resp.StatusCode), nil).
		WithDetail("status", resp.StatusCode)
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		err = err.WithDetail("retryAfter", ra)
	}
	if len(payload) > 0 {
		err = err.WithDetail("body", string(payload))
	}
	return err
}

// backoff picks the next delay. The server's Retry-After wins when present;
// otherwise exponential from 250ms.
func (c *Client) backoff(attempt int, lastErr error) time.Duration {
	if details := services.GetErrorDetails(lastErr); details != nil {
		if ra, ok := details["retryAfter"].(string); ok {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return 250 * time.Millisecond * time.Duration(1<<(attempt-1))
}
