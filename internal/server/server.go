// Package server exposes the overlay service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/buaazp/fasthttprouter"
	fasthttpprometheus "github.com/flf2ko/fasthttp-prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/amirphl/financeiq/internal/config"
	"github.com/amirphl/financeiq/internal/indicator"
	"github.com/amirphl/financeiq/internal/overlay"
)

const (
	URIPathOverlays = "/api/overlays/:ticker"
	URIPathHealth   = "/health"
	URIPathMetrics  = "/metrics"
)

type overlaysServer struct {
	transport      OverlaysTransport
	service        overlay.Service
	errorProcessor ErrorProcessor
	timeout        time.Duration
}

// ServeHTTP implements fasthttp.RequestHandler.
func (s *overlaysServer) ServeHTTP(ctx *fasthttp.RequestCtx) {
	request, err := s.transport.DecodeRequest(ctx, &ctx.Request)
	if err != nil {
		s.errorProcessor.Encode(ctx, &ctx.Response, err)
		return
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	response, err := s.service.Overlays(timeoutCtx, request)
	if err != nil {
		s.errorProcessor.Encode(ctx, &ctx.Response, err)
		return
	}

	if err := s.transport.EncodeResponse(ctx, &ctx.Response, &response); err != nil {
		s.errorProcessor.Encode(ctx, &ctx.Response, err)
		return
	}
}

// NewOverlaysServer the server creator
func NewOverlaysServer(transport OverlaysTransport, service overlay.Service, errorProcessor ErrorProcessor, timeout time.Duration) fasthttp.RequestHandler {
	s := overlaysServer{
		transport:      transport,
		service:        service,
		errorProcessor: errorProcessor,
		timeout:        timeout,
	}
	return s.ServeHTTP
}

// NewHealthHandler answers liveness probes with the build version.
func NewHealthHandler(version string) fasthttp.RequestHandler {
	body, _ := json.Marshal(map[string]string{"status": "ok", "version": version})
	return func(ctx *fasthttp.RequestCtx) {
		ctx.SetContentType("application/json")
		ctx.SetBody(body)
	}
}

// HandlerSettings binds a handler to a method and path.
type HandlerSettings struct {
	Path    string
	Method  string
	Handler fasthttp.RequestHandler
}

// MakeFastHTTPRouter registers every handler on a new router.
func MakeFastHTTPRouter(handlers []*HandlerSettings) *fasthttprouter.Router {
	router := fasthttprouter.New()
	for _, h := range handlers {
		router.Handle(h.Method, h.Path, h.Handler)
	}
	return router
}

// New builds the HTTP server for svc. Request metrics are recorded under
// cfg.Server.MetricsSubsystem and exposed on /metrics with everything else in
// the default Prometheus registry.
func New(cfg config.Config, svc overlay.Service, version string) (*fasthttp.Server, error) {
	defaults, err := indicator.ParseSpecs(strings.Join(cfg.Overlay.Defaults, ","))
	if err != nil {
		return nil, err
	}
	router := MakeFastHTTPRouter([]*HandlerSettings{
		{
			Path:   URIPathOverlays,
			Method: http.MethodGet,
			Handler: NewOverlaysServer(
				NewOverlaysTransport(NewError, defaults, cfg.Overlay.Padded),
				svc,
				NewErrorProcessor(http.StatusInternalServerError, "internal error"),
				cfg.Server.RequestTimeout,
			),
		},
		{Path: URIPathHealth, Method: http.MethodGet, Handler: NewHealthHandler(version)},
		{Path: URIPathMetrics, Method: http.MethodGet, Handler: fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())},
	})

	p := fasthttpprometheus.NewPrometheus(cfg.Server.MetricsSubsystem)
	return &fasthttp.Server{
		Handler:            p.WrapHandler(router),
		Name:               "financeiq",
		ReadTimeout:        cfg.Server.ReadTimeout,
		WriteTimeout:       cfg.Server.WriteTimeout,
		MaxRequestBodySize: cfg.Server.MaxRequestBodySize,
	}, nil
}

