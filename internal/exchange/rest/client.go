// Package rest implements the exchange contract over HTTP with resty.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/betbot/deltamm/internal/domain"
	"github.com/betbot/deltamm/internal/exchange/wire"
	"github.com/betbot/deltamm/internal/ports"
	"github.com/betbot/deltamm/pkg/ratelimit"
)

var _ ports.Exchange = (*Client)(nil)

// Options 客户端参数
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond int
	RetryCount        int
	RetryWait         time.Duration
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = 20
	}
	if o.RetryCount < 0 {
		o.RetryCount = 0
	}
	if o.RetryWait <= 0 {
		o.RetryWait = 100 * time.Millisecond
	}
	return o
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("exchange http %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("exchange http %d: %s", e.Status, e.Message)
}

// Client 交易所 REST 客户端
type Client struct {
	client  *resty.Client
	limiter ratelimit.Limiter
}

func NewClient(host string, opts Options) *Client {
	opts = opts.withDefaults()
	host = strings.TrimSuffix(host, "/")

	client := resty.New().
		SetBaseURL(host).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(10 * opts.RetryWait).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			// 只重试幂等请求的 429/5xx；下单失败交给下一个周期
			if resp == nil || resp.Request == nil || resp.Request.Method == http.MethodPost {
				return false
			}
			return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500
		}).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			// 如果遇到 429 限流，使用 Retry-After 头
			if resp.StatusCode() == http.StatusTooManyRequests {
				if s := resp.Header().Get("Retry-After"); s != "" {
					if secs, err := strconv.Atoi(s); err == nil {
						return time.Duration(secs) * time.Second, nil
					}
				}
			}
			return 0, nil
		})

	return &Client{
		client:  client,
		limiter: ratelimit.NewLimiter(float64(opts.RequestsPerSecond), opts.RequestsPerSecond),
	}
}

func (c *Client) newRequest(ctx context.Context) (*resty.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// 截止时间前拿不到令牌
		return nil, domain.Transient(errors.Wrap(err, "rate limit"))
	}
	return c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetError(&wire.ErrorResponse{}), nil
}

// check maps transport failures and error statuses onto the domain error taxonomy.
func check(ctx context.Context, op string, resp *resty.Response, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return domain.Transient(errors.Wrap(err, op))
	}
	if resp.IsSuccess() {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode(), Message: strings.TrimSpace(string(resp.Body()))}
	if body, ok := resp.Error().(*wire.ErrorResponse); ok && body.Code != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	}
	switch {
	case apiErr.Code == wire.CodeOrderNotFound:
		return errors.Wrap(domain.ErrOrderNotFound, apiErr.Error())
	case apiErr.Code == wire.CodeUnknownInstrument:
		return errors.Wrap(domain.ErrUnknownInstrument, apiErr.Error())
	case apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500:
		return domain.Transient(errors.Wrap(apiErr, op))
	}
	return errors.Wrap(apiErr, op)
}

func (c *Client) ListInstruments(ctx context.Context) (map[string]domain.Instrument, error) {
	req, err := c.newRequest(ctx)
	if err != nil {
		return nil, err
	}
	var out []wire.Instrument
	resp, err := req.SetResult(&out).Get("/api/instruments")
	if err := check(ctx, "list instruments", resp, err); err != nil {
		return nil, err
	}
	all := make(map[string]domain.Instrument, len(out))
	for _, w := range out {
		all[w.ID] = w.Domain()
	}
	return all, nil
}

func (c *Client) GetOrderBook(ctx context.Context, instrumentID string) (*domain.OrderBook, error) {
	req, err := c.newRequest(ctx)
	if err != nil {
		return nil, err
	}
	var out wire.OrderBook
	resp, err := req.SetResult(&out).SetPathParam("id", instrumentID).Get("/api/books/{id}")
	if err := check(ctx, "get order book "+instrumentID, resp, err); err != nil {
		return nil, err
	}
	return out.Domain(), nil
}

func (c *Client) GetPositions(ctx context.Context) (domain.Positions, error) {
	req, err := c.newRequest(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string]int{}
	resp, err := req.SetResult(&out).Get("/api/positions")
	if err := check(ctx, "get positions", resp, err); err != nil {
		return nil, err
	}
	return domain.Positions(out), nil
}

func (c *Client) GetOutstandingOrders(ctx context.Context, instrumentID string) (map[string]domain.Order, error) {
	req, err := c.newRequest(ctx)
	if err != nil {
		return nil, err
	}
	var out []wire.Order
	resp, err := req.SetResult(&out).SetQueryParam("instrument", instrumentID).Get("/api/orders")
	if err := check(ctx, "get outstanding orders "+instrumentID, resp, err); err != nil {
		return nil, err
	}
	orders := make(map[string]domain.Order, len(out))
	for _, o := range out {
		orders[o.ID] = o.Domain()
	}
	return orders, nil
}

func (c *Client) CancelOrder(ctx context.Context, instrumentID, orderID string) error {
	req, err := c.newRequest(ctx)
	if err != nil {
		return err
	}
	resp, err := req.
		SetPathParam("id", orderID).
		SetQueryParam("instrument", instrumentID).
		Delete("/api/orders/{id}")
	return check(ctx, "cancel order "+orderID, resp, err)
}

func (c *Client) InsertOrder(ctx context.Context, order domain.OrderRequest) (string, error) {
	if err := order.Validate(); err != nil {
		return "", err
	}
	req, err := c.newRequest(ctx)
	if err != nil {
		return "", err
	}
	var out wire.InsertOrderResponse
	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetBody(wire.FromOrderRequest(order)).
		SetResult(&out).
		Post("/api/orders")
	if err := check(ctx, "insert order "+order.InstrumentID, resp, err); err != nil {
		return "", err
	}
	if out.OrderID == "" {
		return "", errors.Errorf("insert order %s: empty order id in response", order.InstrumentID)
	}
	return out.OrderID, nil
}

func (c *Client) PollTrades(ctx context.Context, instrumentID string) ([]domain.Trade, error) {
	req, err := c.newRequest(ctx)
	if err != nil {
		return nil, err
	}
	var out []wire.Trade
	resp, err := req.SetResult(&out).SetQueryParam("instrument", instrumentID).Get("/api/trades")
	if err := check(ctx, "poll trades "+instrumentID, resp, err); err != nil {
		return nil, err
	}
	trades := make([]domain.Trade, 0, len(out))
	for _, t := range out {
		trades = append(trades, t.Domain())
	}
	return trades, nil
}
