// Package registry is the client for the external bill registry service.
// It is pure I/O: descriptive User-Agent, proactive rate limiting between
// calls, bounded retries with backoff, and 404 treated as "no detail
// available" rather than an error.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"pledgewatch/internal/domain"
	"pledgewatch/internal/platform/config"
	"pledgewatch/pkg/platform/retry"
	"pledgewatch/pkg/platform/sentinel"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	retry      retry.Policy
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.retry = p }
}

func New(cfg config.Registry, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		limiter:    rate.NewLimiter(rate.Limit(cfg.CallsPerSecond), 1),
		retry:      retry.DefaultPolicy(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListBills fetches the current-bills listing, optionally filtered to one
// session identifier such as "44-1".
func (c *Client) ListBills(ctx context.Context, session string) ([]BillSummary, error) {
	endpoint := c.baseURL + "/bills"
	if session != "" {
		endpoint += "?session=" + url.QueryEscape(session)
	}

	var bills []BillSummary
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		return c.getJSON(ctx, endpoint, &bills)
	})
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return bills, nil
}

// GetBillDetail fetches the structured detail record for one bill.
// A registry 404 surfaces as sentinel.ErrNotFound, which callers treat as
// "no detail available".
func (c *Client) GetBillDetail(ctx context.Context, key domain.BillKey) (*BillDetail, error) {
	endpoint := fmt.Sprintf("%s/bills/%d-%d/%s", c.baseURL, key.Parliament, key.Session, url.PathEscape(key.Code))

	var detail BillDetail
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		return c.getJSON(ctx, endpoint, &detail)
	})
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetBillText fetches the optional full-text document. Missing text is
// normal for young bills and returns an empty string.
func (c *Client) GetBillText(ctx context.Context, key domain.BillKey) (string, error) {
	endpoint := fmt.Sprintf("%s/bills/%d-%d/%s/text", c.baseURL, key.Parliament, key.Session, url.PathEscape(key.Code))

	var text string
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		body, err := c.get(ctx, endpoint)
		if err != nil {
			return err
		}
		text = string(body)
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return text, nil
}

// FetchSnapshot assembles a full bill snapshot, fetching detail and full
// text in parallel under a shared cancellation context.
func (c *Client) FetchSnapshot(ctx context.Context, summary BillSummary) (*domain.BillSnapshot, error) {
	key := summary.Key()

	var (
		detail *BillDetail
		text   string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := c.GetBillDetail(gctx, key)
		if err != nil {
			return err
		}
		detail = d
		return nil
	})
	g.Go(func() error {
		t, err := c.GetBillText(gctx, key)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snapshot := &domain.BillSnapshot{
		Key:          key,
		ShortTitle:   detail.ShortTitle,
		LongTitle:    detail.LongTitle,
		Summary:      detail.Summary,
		SponsorTitle: detail.SponsorTitle,
		Departments:  detail.Departments,
		FullText:     text,
	}
	if t, err := ParseTime(summary.LatestActivity); err == nil {
		snapshot.LatestActivity = t
	}
	if detail.LatestCompletedMajorStage != nil {
		snapshot.LatestMajorStage = detail.LatestCompletedMajorStage.toCompletedStage()
	} else {
		return nil, fmt.Errorf("bill %s: %w: no completed stage in detail payload", key, sentinel.ErrMalformed)
	}
	if detail.LatestCompletedBillStage != nil {
		minor := detail.LatestCompletedBillStage.toCompletedStage()
		snapshot.LatestMinorStage = &minor
	}
	return snapshot, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, sentinel.ErrMalformed)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, sentinel.ErrNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: registry returned %d", sentinel.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("registry returned unexpected status %d for %s", resp.StatusCode, endpoint)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", sentinel.ErrUnavailable, err)
	}
	return body, nil
}
