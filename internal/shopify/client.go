// Package shopify reads the product catalog and per-location inventory from
// the commerce platform's admin REST API.
package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"flashbot-backend/internal/model"

	"golang.org/x/time/rate"
)

// API is the catalog read surface consumed by the indexer.
type API interface {
	ListLocations(ctx context.Context) ([]model.RawLocation, error)
	ListProducts(ctx context.Context) ([]model.RawProduct, error)
	InventoryLevels(ctx context.Context, inventoryItemIDs []int64) ([]model.RawLevel, error)
}

// Config holds the client settings.
type Config struct {
	Token          string
	BaseURL        string // admin API base, e.g. https://store.myshopify.com/admin/api/2024-10
	PageSize       int
	MaxPages       int
	InventoryBatch int
	Timeout        time.Duration
	RetryAfter     time.Duration // sleep before the single 429 retry
	RequestsPerSec float64
	Burst          int
}

// Client is a rate-limit-aware reader of the catalog API.
type Client struct {
	httpClient     *http.Client
	token          string
	baseURL        string
	pageSize       int
	maxPages       int
	inventoryBatch int
	retryAfter     time.Duration
	limiter        *rate.Limiter
}

// NewClient creates a catalog API client.
func NewClient(cfg Config) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 250
	}
	if cfg.MaxPages <= 0 {
		// Defensive bound: since_id pagination assumes the upstream returns
		// identifiers in non-decreasing order. The cap keeps a misbehaving
		// upstream from stalling the loop forever.
		cfg.MaxPages = 40
	}
	if cfg.InventoryBatch <= 0 || cfg.InventoryBatch > 50 {
		cfg.InventoryBatch = 50 // upstream batch ceiling
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 40 * time.Second
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = 1200 * time.Millisecond
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 4
	}

	return &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		token:          cfg.Token,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		pageSize:       cfg.PageSize,
		maxPages:       cfg.MaxPages,
		inventoryBatch: cfg.InventoryBatch,
		retryAfter:     cfg.RetryAfter,
		limiter:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
	}
}

// get performs a GET with one bounded retry on 429 and decodes the body into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	body, err := c.doOnce(ctx, reqURL)
	if err == model.ErrRateLimited {
		select {
		case <-time.After(c.retryAfter):
		case <-ctx.Done():
			return ctx.Err()
		}
		body, err = c.doOnce(ctx, reqURL)
		if err == model.ErrRateLimited {
			log.Printf("[ShopifyClient] 429 persisted after retry: %s", path)
			return model.ErrRateLimited
		}
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// doOnce executes a single GET, returning ErrRateLimited on 429.
func (c *Client) doOnce(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, model.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return body, nil
}

// ListLocations fetches all stock locations.
func (c *Client) ListLocations(ctx context.Context) ([]model.RawLocation, error) {
	var out struct {
		Locations []model.RawLocation `json:"locations"`
	}
	if err := c.get(ctx, "/locations.json", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return out.Locations, nil
}

// productFields limits product payloads to what the indexer needs.
const productFields = "id,title,handle,body_html,image,images,variants,tags,vendor,status,product_type"

// ListProducts downloads the whole catalog page by page. The cursor is the
// last identifier of the previous page; a short or empty page ends the loop.
func (c *Client) ListProducts(ctx context.Context) ([]model.RawProduct, error) {
	var products []model.RawProduct
	var sinceID int64

	for page := 0; page < c.maxPages; page++ {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(c.pageSize))
		params.Set("fields", productFields)
		if sinceID > 0 {
			params.Set("since_id", strconv.FormatInt(sinceID, 10))
		}

		var out struct {
			Products []model.RawProduct `json:"products"`
		}
		if err := c.get(ctx, "/products.json", params, &out); err != nil {
			return nil, fmt.Errorf("failed to list products (since_id=%d): %w", sinceID, err)
		}

		if len(out.Products) == 0 {
			break
		}

		products = append(products, out.Products...)
		sinceID = out.Products[len(out.Products)-1].ID

		if len(out.Products) < c.pageSize {
			break
		}
	}

	log.Printf("[ShopifyClient] Fetched %d products", len(products))
	return products, nil
}

// InventoryLevels fetches inventory levels for the given inventory item IDs
// in fixed-size batches. Batches are independent: one failed batch does not
// discard levels already gathered from the others.
func (c *Client) InventoryLevels(ctx context.Context, inventoryItemIDs []int64) ([]model.RawLevel, error) {
	var levels []model.RawLevel
	var lastErr error
	failed := 0

	for start := 0; start < len(inventoryItemIDs); start += c.inventoryBatch {
		end := start + c.inventoryBatch
		if end > len(inventoryItemIDs) {
			end = len(inventoryItemIDs)
		}

		params := url.Values{}
		params.Set("inventory_item_ids", joinIDs(inventoryItemIDs[start:end]))

		var out struct {
			InventoryLevels []model.RawLevel `json:"inventory_levels"`
		}
		if err := c.get(ctx, "/inventory_levels.json", params, &out); err != nil {
			log.Printf("[ShopifyClient] Inventory batch %d-%d failed: %v", start, end, err)
			lastErr = err
			failed++
			continue
		}
		levels = append(levels, out.InventoryLevels...)
	}

	if failed > 0 && len(levels) == 0 {
		return nil, fmt.Errorf("all inventory batches failed: %w", lastErr)
	}
	return levels, nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Ensure Client implements API
var _ API = (*Client)(nil)
