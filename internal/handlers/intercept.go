// Package handlers serves the intercepted dashboard traffic and the page
// event stream.
package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/proxy"

	"carsync/internal/router"
)

// InterceptHandler puts the cache router in front of the upstream API.
type InterceptHandler struct {
	router   *router.Router
	upstream string
}

// NewInterceptHandler creates an intercept handler. Requests the router
// does not serve are forwarded to upstream as-is.
func NewInterceptHandler(r *router.Router, upstream string) *InterceptHandler {
	return &InterceptHandler{
		router:   r,
		upstream: strings.TrimSuffix(upstream, "/"),
	}
}

// Handle answers GET requests through the router and proxies everything else.
func (h *InterceptHandler) Handle(c fiber.Ctx) error {
	query := string(c.Request().URI().QueryString())
	if c.Method() != fiber.MethodGet {
		target := h.upstream + c.Path()
		if query != "" {
			target += "?" + query
		}
		return proxy.Do(c, target)
	}

	header := http.Header{}
	for k, vs := range c.GetReqHeaders() {
		for _, v := range vs {
			header.Add(k, v)
		}
	}

	req := h.router.OriginRequest(c.Path(), query, header)
	slog.Debug("intercepted request", "url", req.URL.String())
	resp := h.router.Serve(c.Context(), req)
	for k, vs := range resp.Header {
		for _, v := range vs {
			c.Response().Header.Add(k, v)
		}
	}
	return c.Status(resp.Status).Send(resp.Body)
}
