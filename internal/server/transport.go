package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/amirphl/financeiq/internal/indicator"
	"github.com/amirphl/financeiq/internal/overlay"
)

// OverlaysTransport transport interface
type OverlaysTransport interface {
	DecodeRequest(ctx *fasthttp.RequestCtx, r *fasthttp.Request) (request overlay.Request, err error)
	EncodeResponse(ctx context.Context, r *fasthttp.Response, response *overlay.Response) (err error)
}

type overlaysTransport struct {
	errorCreator ErrorCreator
	defaults     []indicator.Spec
	padded       bool
}

// DecodeRequest reads the ticker from the route and range, indicators,
// padded and candles from the query string. Missing indicators fall back to the
// configured defaults.
func (t *overlaysTransport) DecodeRequest(ctx *fasthttp.RequestCtx, r *fasthttp.Request) (request overlay.Request, err error) {
	ticker, _ := ctx.UserValue("ticker").(string)
	args := r.URI().QueryArgs()

	request.Ticker = ticker
	request.Range = string(args.Peek("range"))
	request.Padded = t.padded
	request.Specs = t.defaults

	if list := strings.TrimSpace(string(args.Peek("indicators"))); list != "" {
		if request.Specs, err = indicator.ParseSpecs(list); err != nil {
			return overlay.Request{}, t.errorCreator(http.StatusBadRequest, "failed to parse indicators: %v", err)
		}
	}
	switch style := string(args.Peek("candles")); style {
	case "", "ohlc":
	case "heikin-ashi":
		request.HeikinAshi = true
	default:
		return overlay.Request{}, t.errorCreator(http.StatusBadRequest, "invalid candles value %q", style)
	}
	if v := args.Peek("padded"); len(v) > 0 {
		if request.Padded, err = strconv.ParseBool(string(v)); err != nil {
			return overlay.Request{}, t.errorCreator(http.StatusBadRequest, "invalid padded value %q", v)
		}
	}
	return request, nil
}

// EncodeResponse method for encoding response on server side
func (t *overlaysTransport) EncodeResponse(ctx context.Context, r *fasthttp.Response, response *overlay.Response) (err error) {
	r.Header.Set("Content-Type", "application/json")
	if err = json.NewEncoder(r.BodyWriter()).Encode(response); err != nil {
		return t.errorCreator(http.StatusInternalServerError, "failed to encode JSON response: %s", err)
	}
	return
}

// NewOverlaysTransport the transport creator for http requests
func NewOverlaysTransport(errorCreator ErrorCreator, defaults []indicator.Spec, padded bool) OverlaysTransport {
	return &overlaysTransport{
		errorCreator: errorCreator,
		defaults:     defaults,
		padded:       padded,
	}
}
