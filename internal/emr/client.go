package emr

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ClientConfig configures the HTTP client for the clinical system.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	// Timeout bounds one fetch; zero leaves it unbounded.
	Timeout    time.Duration
	RetryCount int
}

// admissionsResponse is the envelope returned by GET /admissions.
type admissionsResponse struct {
	Status  int      `json:"status"`
	Msg     string   `json:"msg"`
	Bundles []Bundle `json:"bundles"`
}

// Client fetches admission bundles from the clinical system over HTTP.
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient creates a clinical system client.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.RetryCount > 0 {
		client.SetRetryCount(cfg.RetryCount).
			SetRetryWaitTime(1 * time.Second).
			SetRetryMaxWaitTime(5 * time.Second)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{httpClient: client, logger: logger}
}

// Fetch returns every admission bundle the clinical system reports for [start, end].
func (c *Client) Fetch(ctx context.Context, start, end time.Time) ([]Bundle, error) {
	startDate := start.Format(DateLayout)
	endDate := end.Format(DateLayout)

	c.logger.Info("Fetching admissions from EMR",
		zap.String("start_date", startDate),
		zap.String("end_date", endDate),
	)

	var response admissionsResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"startDate": startDate,
			"endDate":   endDate,
		}).
		SetResult(&response).
		Get("/admissions")
	if err != nil {
		c.logger.Error("EMR fetch failed", zap.Error(err))
		return nil, fmt.Errorf("failed to call EMR: %w", err)
	}

	if resp.IsError() {
		c.logger.Error("EMR returned HTTP error",
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, fmt.Errorf("EMR HTTP error: %s", resp.Status())
	}

	if response.Status != 0 {
		c.logger.Error("EMR returned error",
			zap.Int("status", response.Status),
			zap.String("msg", response.Msg),
		)
		return nil, fmt.Errorf("EMR error: %s (status: %d)", response.Msg, response.Status)
	}

	c.logger.Info("Fetched admissions from EMR",
		zap.Int("bundle_count", len(response.Bundles)),
	)
	return response.Bundles, nil
}
