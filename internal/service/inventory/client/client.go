// internal/service/inventory/client/client.go
package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"

	"marketbot/internal/pkg/httpclient"
	"marketbot/internal/service/inventory/domain"
)

// Client 是库存服务 HTTP API 的调用方封装。
// 业务拒绝以 domain.Result 返回，网络错误和 5xx 才返回 error。
type Client struct {
	baseURL string
	http    *httpclient.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpclient.NewClient(otel.Tracer("inventory-client")),
	}
}

// Availability 是可用库存查询的结果
type Availability struct {
	SKU       string `json:"sku"`
	Found     bool   `json:"found"`
	Available int    `json:"available"`
	Qty       int    `json:"qty"`
	Enough    bool   `json:"enough"`
}

type itemsRequest struct {
	OrderID string        `json:"order_id"`
	Items   []domain.Item `json:"items"`
}

type singleRequest struct {
	OrderID string `json:"order_id"`
	SKU     string `json:"sku"`
	Qty     int    `json:"qty"`
}

type orderRequest struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason,omitempty"`
}

// 这些状态码的响应体都是 domain.Result
func acceptResult(status int) bool {
	switch status {
	case http.StatusOK, http.StatusBadRequest, http.StatusNotFound, http.StatusConflict,
		http.StatusUnprocessableEntity, http.StatusServiceUnavailable:
		return true
	}
	return false
}

func (c *Client) post(ctx context.Context, path string, in any) (domain.Result, error) {
	var res domain.Result
	if _, err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+path, in, &res, acceptResult); err != nil {
		return domain.Result{}, err
	}
	return res, nil
}

func (c *Client) Reserve(ctx context.Context, orderID, sku string, qty int) (domain.Result, error) {
	return c.post(ctx, "/inventory/reserve", singleRequest{OrderID: orderID, SKU: sku, Qty: qty})
}

func (c *Client) ReserveCart(ctx context.Context, orderID string, items []domain.Item) (domain.Result, error) {
	return c.post(ctx, "/inventory/reserve_cart", itemsRequest{OrderID: orderID, Items: items})
}

// Confirm 由服务端按订单模式分派
func (c *Client) Confirm(ctx context.Context, orderID string) (domain.Result, error) {
	return c.post(ctx, "/inventory/confirm", orderRequest{OrderID: orderID})
}

// Release 由服务端按订单模式分派
func (c *Client) Release(ctx context.Context, orderID, reason string) (domain.Result, error) {
	return c.post(ctx, "/inventory/release", orderRequest{OrderID: orderID, Reason: reason})
}

func (c *Client) ConfirmSingle(ctx context.Context, orderID string) (domain.Result, error) {
	return c.post(ctx, "/inventory/confirm_single", orderRequest{OrderID: orderID})
}

func (c *Client) ReleaseSingle(ctx context.Context, orderID, reason string) (domain.Result, error) {
	return c.post(ctx, "/inventory/release_single", orderRequest{OrderID: orderID, Reason: reason})
}

func (c *Client) ConfirmCart(ctx context.Context, orderID string) (domain.Result, error) {
	return c.post(ctx, "/inventory/confirm_cart", orderRequest{OrderID: orderID})
}

func (c *Client) ReleaseCart(ctx context.Context, orderID, reason string) (domain.Result, error) {
	return c.post(ctx, "/inventory/release_cart", orderRequest{OrderID: orderID, Reason: reason})
}

// Available 查询可用库存快照，qty<1 时按 1 处理
func (c *Client) Available(ctx context.Context, sku string, qty int) (Availability, error) {
	q := url.Values{}
	q.Set("sku", sku)
	q.Set("qty", strconv.Itoa(qty))

	var out Availability
	if _, err := c.http.DoJSON(ctx, http.MethodGet, c.baseURL+"/inventory/available?"+q.Encode(), nil, &out, nil); err != nil {
		return Availability{}, err
	}
	return out, nil
}
