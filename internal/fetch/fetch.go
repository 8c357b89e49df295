// Package fetch downloads the raw per-category net-flow spreadsheets
// from the exchange. The exchange protects the endpoint behind a
// two-step flow: a form POST issues a one-time download token, a second
// POST with that token returns the xlsx payload.
package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"krxflow/internal/config"
	"krxflow/internal/domain"
	apperrors "krxflow/internal/errors"
)

// minTokenLen guards against error pages returned in place of a token.
const minTokenLen = 50

// The endpoint rejects requests without a browser-looking identity.
const (
	referer   = "http://data.krx.co.kr/contents/MDC/MDI/mdiLoader/index.cmd?menuId=MDC0201020101"
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Fetcher is the port the fetch task depends on.
type Fetcher interface {
	// FetchCategory downloads the raw spreadsheet for one category
	// and date. A non-trading day yields a small but valid payload;
	// interpreting it is the standardizer's job.
	FetchCategory(ctx context.Context, cat domain.Category, date domain.Date) ([]byte, error)
}

// KRXClient implements Fetcher against the exchange's OTP endpoints.
type KRXClient struct {
	client      *http.Client
	limiter     *rate.Limiter
	otpURL      string
	downloadURL string
	logger      *slog.Logger
}

// NewKRXClient builds a client from the fetch configuration. The rate
// limiter paces every token request so parallel category fetches stay
// polite.
func NewKRXClient(cfg config.FetchConfig, logger *slog.Logger) *KRXClient {
	if logger == nil {
		logger = slog.Default()
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 1
	}
	return &KRXClient{
		client:      &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		otpURL:      cfg.OTPURL,
		downloadURL: cfg.DownloadURL,
		logger:      logger.With(slog.String("component", "fetch")),
	}
}

// otpParams builds the token request form for one category and date.
func otpParams(cat domain.Category, date domain.Date) url.Values {
	v := url.Values{
		"locale":      {"ko_KR"},
		"strtDd":      {date.String()},
		"endDd":       {date.String()},
		"share":       {"1"},
		"money":       {"3"},
		"csvxls_isNo": {"false"},
		"name":        {"fileDown"},
		"url":         {"dbms/MDC/STAT/standard/MDCSTAT02401"},
	}

	switch cat.Market {
	case domain.MarketKOSPI:
		v.Set("mktId", "STK")
	case domain.MarketKOSDAQ:
		v.Set("mktId", "KSQ")
		v.Set("segTpCd", "ALL")
	}

	switch cat.Investor {
	case domain.InvestorInstitutions:
		v.Set("invstTpCd", "7050")
	case domain.InvestorForeigner:
		v.Set("invstTpCd", "9000")
	}
	return v
}

func (c *KRXClient) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", referer)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewNetworkError("unexpected status "+resp.Status, nil).
			WithContext("endpoint", endpoint)
	}
	return io.ReadAll(resp.Body)
}

// FetchCategory runs the token/download exchange for one category.
func (c *KRXClient) FetchCategory(ctx context.Context, cat domain.Category, date domain.Date) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	token, err := c.postForm(ctx, c.otpURL, otpParams(cat, date))
	if err != nil {
		return nil, apperrors.NewNetworkError("request download token", err).
			WithContext("category", cat.Key())
	}
	if len(token) < minTokenLen {
		return nil, apperrors.NewNetworkError("download token rejected", nil).
			WithContext("category", cat.Key()).
			WithContext("response", string(token))
	}

	payload, err := c.postForm(ctx, c.downloadURL, url.Values{"code": {string(token)}})
	if err != nil {
		return nil, apperrors.NewNetworkError("download spreadsheet", err).
			WithContext("category", cat.Key())
	}

	c.logger.Info("category downloaded",
		slog.String("category", cat.Key()),
		slog.String("date", date.String()),
		slog.Int("bytes", len(payload)),
		slog.Duration("took", time.Since(start)))
	return payload, nil
}

// FetchAll downloads every category for one date. Requests run
// concurrently but share the client's limiter, and the result maps are
// assembled after all downloads finish so the ordering of arrivals
// never matters. A failed category does not cancel its siblings; the
// caller decides what a partial batch means.
func FetchAll(ctx context.Context, f Fetcher, date domain.Date) (map[string][]byte, map[string]error) {
	cats := domain.AllCategories()
	results := make([][]byte, len(cats))
	errs := make([]error, len(cats))

	var g errgroup.Group
	for i, cat := range cats {
		g.Go(func() error {
			results[i], errs[i] = f.FetchCategory(ctx, cat, date)
			return nil
		})
	}
	_ = g.Wait()

	payloads := make(map[string][]byte, len(cats))
	failures := make(map[string]error)
	for i, cat := range cats {
		if errs[i] != nil {
			failures[cat.Key()] = errs[i]
			continue
		}
		payloads[cat.Key()] = results[i]
	}
	return payloads, failures
}
