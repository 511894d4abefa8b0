package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"

	"github.com/rl1809/shoes-cart/internal/core/domain"
)

const maxBodySize = 1 << 20

var ErrUnavailable = errors.New("product api unavailable")

type Options struct {
	BaseURL string
	Timeout time.Duration

	// Consecutive upstream failures before the breaker opens.
	FailureThreshold uint32
	// How long the breaker stays open before letting a probe through.
	OpenTimeout time.Duration

	Logger    *slog.Logger
	Transport http.RoundTripper
}

// APIClient talks to the remote product/stock API:
//
//	GET {base}/stock/{id}    -> {"id": 1, "amount": 3}
//	GET {base}/products/{id} -> {"id": 1, "title": "...", "price": 179.9, "image": "..."}
type APIClient struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	group   singleflight.Group
}

func NewAPIClient(opts Options) *APIClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}

	logger := opts.Logger
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "product-api",
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		// A 404 is an answer, not an outage. A caller giving up says nothing
		// about upstream health either.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, domain.ErrProductNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &APIClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(opts.Transport),
		},
		breaker: breaker,
	}
}

func (c *APIClient) GetStock(ctx context.Context, productID int64) (domain.Stock, error) {
	var stock domain.Stock
	if err := c.getJSON(ctx, "/stock/"+strconv.FormatInt(productID, 10), &stock); err != nil {
		return domain.Stock{}, fmt.Errorf("get stock %d: %w", productID, err)
	}

	stock.ProductID = productID
	if err := stock.Validate(); err != nil {
		return domain.Stock{}, fmt.Errorf("get stock %d: %w", productID, err)
	}
	return stock, nil
}

// GetProduct coalesces concurrent lookups of the same product into one request.
// Nothing is cached between calls. The shared request is detached from any one
// caller's cancellation and bounded by the client timeout instead; each caller
// still stops waiting when its own ctx is done.
func (c *APIClient) GetProduct(ctx context.Context, productID int64) (domain.Product, error) {
	path := "/products/" + strconv.FormatInt(productID, 10)

	ch := c.group.DoChan(path, func() (interface{}, error) {
		var p domain.Product
		err := c.getJSON(context.WithoutCancel(ctx), path, &p)
		return p, err
	})

	select {
	case <-ctx.Done():
		return domain.Product{}, fmt.Errorf("get product %d: %w", productID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return domain.Product{}, fmt.Errorf("get product %d: %w", productID, res.Err)
		}
		p := res.Val.(domain.Product)
		p.Extra = maps.Clone(p.Extra)
		return p, nil
	}
}

func (c *APIClient) getJSON(ctx context.Context, path string, out interface{}) error {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.fetch(ctx, path)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *APIClient) fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrProductNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("request %s: unexpected status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
