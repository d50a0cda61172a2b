package random

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"payment-service/internal/domain"
)

// NumberSource yields one random integer per call.
type NumberSource interface {
	GetRandomNumber(ctx context.Context) (int, error)
}

type ClientConfig struct {
	BaseURL string
	Path    string
	Min     int
	Max     int
	Count   int
	Timeout time.Duration
}

type Client struct {
	httpClient *http.Client
	cfg        ClientConfig
	logger     *zap.Logger
}

func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
	}
}

// GetRandomNumber asks the oracle for cfg.Count numbers and returns the first.
// Every failure wraps domain.ErrRandomUnavailable.
func (c *Client) GetRandomNumber(ctx context.Context) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.requestURL(), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: build request: %v", domain.ErrRandomUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrRandomUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("%w: unexpected status %d", domain.ErrRandomUnavailable, resp.StatusCode)
	}

	var numbers []int
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&numbers); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", domain.ErrRandomUnavailable, err)
	}
	if len(numbers) == 0 {
		return 0, fmt.Errorf("%w: empty array", domain.ErrRandomUnavailable)
	}

	c.logger.Debug("Random number received", zap.Int("value", numbers[0]))
	return numbers[0], nil
}

func (c *Client) requestURL() string {
	q := url.Values{}
	q.Set("min", strconv.Itoa(c.cfg.Min))
	q.Set("max", strconv.Itoa(c.cfg.Max))
	q.Set("count", strconv.Itoa(c.cfg.Count))
	return c.cfg.BaseURL + c.cfg.Path + "?" + q.Encode()
}
