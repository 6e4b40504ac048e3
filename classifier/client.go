// Package classifier talks to the external image risk classifier and feeds
// its answers back into issue scoring.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"civictriage/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

//go:generate mockgen -destination=mock_analyzer_test.go -package=classifier . Analyzer

var ErrInvalidResponse = errors.New("classifier returned an unusable response")

// Request is the body of POST /analyze.
type Request struct {
	Image     string  `json:"image"`
	InfraType string  `json:"infra_type"`
	ZoneType  string  `json:"zone_type"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
}

type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*models.AIAnalysis, error)
}

// Client is the HTTP Analyzer.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{http: client, logger: logger}
}

func (c *Client) Analyze(ctx context.Context, req Request) (*models.AIAnalysis, error) {
	var out models.AIAnalysis
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/analyze")
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	if resp.IsError() {
		c.logger.Warn("classifier rejected request",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", truncate(resp.String(), 200)),
		)
		return nil, fmt.Errorf("analyze: status %d", resp.StatusCode())
	}
	if out.RiskLevel == "" {
		return nil, ErrInvalidResponse
	}
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
