package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"catalogsync/internal"
	"catalogsync/internal/config"
	"catalogsync/internal/metrics"
)

const (
	pathProducts = "v1/produto/produtos"
	pathPrices   = "v1/produto/precos"
	pathSections = "v1/produto/secoes"
	pathBrands   = "v1/produto/marcas"
	pathGenres   = "v1/produto/generos"
	pathStock    = "v1/estoque/saldos"
)

type Client struct {
	baseURL     string
	apiKey      string
	authHeader  string
	pageSize    int
	maxRetries  int
	batchDelay  time.Duration
	backoffBase time.Duration
	httpClient  *http.Client
	limiter     *RateLimiter
	log         *zap.Logger
}

type Query struct {
	Q    string
	Sort string
}

// Page is one decoded ERP envelope {start, count, total, items}.
type Page struct {
	Start int
	Count int
	Total int
	Items []map[string]any
}

type envelope struct {
	Start int             `json:"start"`
	Count int             `json:"count"`
	Total *int            `json:"total"`
	Items json.RawMessage `json:"items"`
}

func NewClient(cfg config.Config, log *zap.Logger) *Client {
	pageSize := cfg.ERPPageSize
	if pageSize <= 0 || pageSize > config.MaxPageSize {
		pageSize = config.MaxPageSize
	}
	retries := cfg.ERPMaxRetries
	if retries <= 0 {
		retries = 1
	}
	header := strings.TrimSpace(cfg.ERPAuthHeader)
	if header == "" {
		header = "x-api-key"
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.ERPBaseURL, "/") + "/",
		apiKey:      cfg.ERPAPIKey,
		authHeader:  header,
		pageSize:    pageSize,
		maxRetries:  retries,
		batchDelay:  cfg.ERPBatchDelay(),
		backoffBase: 250 * time.Millisecond,
		httpClient:  &http.Client{Timeout: cfg.ERPTimeout()},
		limiter:     NewRateLimiter(cfg.ERPRateLimitRPS),
		log:         log.Named("upstream"),
	}
}

func (c *Client) FetchProducts(ctx context.Context) ([]internal.RawProduct, int, error) {
	items, err := c.fetchAll(ctx, "products", pathProducts, Query{})
	if err != nil {
		return nil, 0, err
	}
	out := make([]internal.RawProduct, 0, len(items))
	skipped := 0
	for _, raw := range items {
		p, ok := toRawProduct(raw)
		if !ok {
			skipped++
			continue
		}
		out = append(out, p)
	}
	return out, skipped, nil
}

func (c *Client) FetchPrices(ctx context.Context) ([]internal.RawPrice, int, error) {
	items, err := c.fetchAll(ctx, "prices", pathPrices, Query{})
	if err != nil {
		return nil, 0, err
	}
	out := make([]internal.RawPrice, 0, len(items))
	skipped := 0
	for _, raw := range items {
		p, ok := toRawPrice(raw)
		if !ok {
			skipped++
			continue
		}
		out = append(out, p)
	}
	return out, skipped, nil
}

func (c *Client) FetchStock(ctx context.Context) ([]internal.RawStock, int, error) {
	items, err := c.fetchAll(ctx, "stock", pathStock, Query{})
	if err != nil {
		return nil, 0, err
	}
	out := make([]internal.RawStock, 0, len(items))
	skipped := 0
	for _, raw := range items {
		s, ok := toRawStock(raw)
		if !ok {
			skipped++
			continue
		}
		out = append(out, s)
	}
	return out, skipped, nil
}

func (c *Client) FetchSections(ctx context.Context) ([]internal.TaxonomyRecord, int, error) {
	return c.fetchTaxonomy(ctx, "sections", pathSections)
}

func (c *Client) FetchBrands(ctx context.Context) ([]internal.TaxonomyRecord, int, error) {
	return c.fetchTaxonomy(ctx, "brands", pathBrands)
}

func (c *Client) FetchGenres(ctx context.Context) ([]internal.TaxonomyRecord, int, error) {
	return c.fetchTaxonomy(ctx, "genres", pathGenres)
}

// FetchGroups walks the groups of every given section in order.
func (c *Client) FetchGroups(ctx context.Context, sectionIDs []int) ([]internal.GroupRecord, int, error) {
	out := []internal.GroupRecord{}
	skipped := 0
	for _, sectionID := range sectionIDs {
		path := pathSections + "/" + strconv.Itoa(sectionID) + "/grupos"
		items, err := c.fetchAll(ctx, "groups", path, Query{})
		if err != nil {
			return nil, 0, err
		}
		for _, raw := range items {
			g, ok := toGroupRecord(raw, sectionID)
			if !ok {
				skipped++
				continue
			}
			out = append(out, g)
		}
	}
	return out, skipped, nil
}

func (c *Client) fetchTaxonomy(ctx context.Context, resource, path string) ([]internal.TaxonomyRecord, int, error) {
	items, err := c.fetchAll(ctx, resource, path, Query{})
	if err != nil {
		return nil, 0, err
	}
	out := make([]internal.TaxonomyRecord, 0, len(items))
	skipped := 0
	for _, raw := range items {
		r, ok := toTaxonomyRecord(raw)
		if !ok {
			skipped++
			continue
		}
		out = append(out, r)
	}
	return out, skipped, nil
}

// fetchAll pages through a resource until a short or empty batch is returned
// or the reported total is reached.
func (c *Client) fetchAll(ctx context.Context, resource, path string, q Query) ([]map[string]any, error) {
	all := []map[string]any{}
	start := 0
	for {
		page, err := c.fetchPage(ctx, resource, path, start, c.pageSize, q)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		start += len(page.Items)

		if len(page.Items) == 0 || len(page.Items) < c.pageSize {
			break
		}
		if page.Total > 0 && start >= page.Total {
			break
		}
		if err := sleepCtx(ctx, c.batchDelay); err != nil {
			return nil, unavailable(resource, 0, err)
		}
	}

	c.log.Debug("resource fetched", zap.String("resource", resource), zap.Int("records", len(all)))
	return all, nil
}

// FetchPage requests a single page of any ERP list endpoint.
func (c *Client) FetchPage(ctx context.Context, path string, start, count int, q Query) (Page, error) {
	if count <= 0 || count > config.MaxPageSize {
		count = c.pageSize
	}
	return c.fetchPage(ctx, path, path, start, count, q)
}

func (c *Client) fetchPage(ctx context.Context, resource, path string, start, count int, q Query) (Page, error) {
	params := map[string]string{
		"start": strconv.Itoa(start),
		"count": strconv.Itoa(count),
		"q":     q.Q,
		"sort":  q.Sort,
	}
	body, err := c.fetchJSON(ctx, resource, path, params)
	if err != nil {
		return Page{}, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Page{}, malformed(resource, err)
	}
	trimmed := bytes.TrimSpace(env.Items)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return Page{}, malformed(resource, errMissingItems)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var items []map[string]any
	if err := dec.Decode(&items); err != nil {
		return Page{}, malformed(resource, err)
	}

	page := Page{Start: env.Start, Count: env.Count, Items: items}
	if env.Total != nil {
		page.Total = *env.Total
	}
	return page, nil
}

func (c *Client) fetchJSON(ctx context.Context, resource, endpoint string, params map[string]string) ([]byte, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, unavailable(resource, 0, errors.New("missing ERP_API_KEY"))
	}

	u, err := url.Parse(c.baseURL + strings.TrimLeft(endpoint, "/"))
	if err != nil {
		return nil, unavailable(resource, 0, err)
	}
	query := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			query.Set(k, v)
		}
	}
	u.RawQuery = query.Encode()

	var lastErr error
	lastStatus := 0
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, c.backoff(attempt-1)); err != nil {
				return nil, unavailable(resource, lastStatus, err)
			}
		}
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return nil, unavailable(resource, lastStatus, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, unavailable(resource, 0, err)
		}
		req.Header.Set(c.authHeader, c.apiKey)
		req.Header.Set("Accept", "application/json")

		began := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.RecordUpstream(resource, 0, time.Since(began))
			lastErr, lastStatus = err, 0
			if ctx.Err() != nil {
				break
			}
			c.log.Warn("erp request failed", zap.String("resource", resource), zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		metrics.RecordUpstream(resource, resp.StatusCode, time.Since(began))
		if readErr != nil {
			lastErr, lastStatus = readErr, resp.StatusCode
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("unexpected status: %s", truncate(string(body), 200))
			lastStatus = resp.StatusCode
			if !isRetryableStatus(resp.StatusCode) {
				return nil, unavailable(resource, resp.StatusCode, lastErr)
			}
			c.log.Warn("erp request retryable status", zap.String("resource", resource), zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode))
			continue
		}
		return body, nil
	}

	if lastErr == nil {
		lastErr = errors.New("erp request failed")
	}
	return nil, unavailable(resource, lastStatus, lastErr)
}

func (c *Client) backoff(retry int) time.Duration {
	base := c.backoffBase * time.Duration(1<<(retry-1))
	jitter := time.Duration(rand.Int63n(int64(c.backoffBase/2) + 1))
	return base + jitter
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
