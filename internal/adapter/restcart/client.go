// Package restcart is the remote persistence path: every cart mutation
// of an authenticated session is exactly one HTTP call against the
// storefront cart API, whose response snapshot replaces the local view.
package restcart

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rynott/cartcore/internal/core/domain"
	"github.com/rynott/cartcore/internal/core/port"
)

var _ port.CartBackend = (*Client)(nil)

type Client struct {
	baseURL string
	httpCl  *http.Client
	auth    port.AuthProvider
}

type Opt func(*Client)

func TLSConfigOpt(cfg *tls.Config) Opt {
	return func(c *Client) {
		c.httpCl.Transport = &http.Transport{TLSClientConfig: cfg}
	}
}

// New builds a client for the cart API rooted at baseURL (the path
// prefix, e.g. "https://shop.example.com/api"). The bearer token is
// read from auth on every request.
func New(
	baseURL string, timeout time.Duration, auth port.AuthProvider, opts ...Opt,
) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCl:  &http.Client{Timeout: timeout},
		auth:    auth,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Load(ctx context.Context) (domain.Cart, error) {
	const op = "Client.Load"
	return c.do(ctx, op, http.MethodGet, "/cart", nil)
}

func (c *Client) Add(
	ctx context.Context, product domain.ProductSnapshot, quantity int,
) (domain.Cart, error) {
	const op = "Client.Add"
	body := addRequest{ProductID: product.ID, Quantity: quantity}
	return c.do(ctx, op, http.MethodPost, "/cart", body)
}

func (c *Client) Remove(
	ctx context.Context, productID string,
) (domain.Cart, error) {
	const op = "Client.Remove"
	return c.do(ctx, op, http.MethodDelete, "/cart/"+url.PathEscape(productID), nil)
}

// UpdateQuantity delegates the qty<=0 removal rule to the server.
func (c *Client) UpdateQuantity(
	ctx context.Context, productID string, quantity int,
) (domain.Cart, error) {
	const op = "Client.UpdateQuantity"
	body := updateRequest{Quantity: quantity}
	return c.do(ctx, op, http.MethodPut, "/cart/"+url.PathEscape(productID), body)
}

func (c *Client) Clear(ctx context.Context) (domain.Cart, error) {
	const op = "Client.Clear"
	return c.do(ctx, op, http.MethodDelete, "/cart", nil)
}

func (c *Client) do(
	ctx context.Context, op, method, path string, body any,
) (domain.Cart, error) {
	log := slog.With("op", op)

	if err := ctx.Err(); err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.auth.Credentials().Token)

	res, err := c.httpCl.Do(req)
	if err != nil {
		// no response at all, never assume partial success
		log.Warn("cart request failed", "method", method, "err", err)
		return domain.Cart{}, fmt.Errorf("%s: %w: %w", op, domain.ErrNetwork, err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w: %w", op, domain.ErrNetwork, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var errRes errorPayload
		_ = json.Unmarshal(resBody, &errRes)
		if errRes.Message == "" {
			errRes.Message = res.Status
		}
		log.Warn("cart request rejected",
			"method", method, "status", res.StatusCode, "message", errRes.Message)
		return domain.Cart{}, fmt.Errorf("%s: %w: %s",
			op, domain.ErrBackend, errRes.Message)
	}

	payload, err := decodeCart(resBody)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%s: %w: %w", op, domain.ErrBackend, err)
	}
	return payload.toDomain(), nil
}
