package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/valyala/fasthttp"

	"github.com/amirphl/financeiq/internal/indicator"
	"github.com/amirphl/financeiq/internal/overlay"
	"github.com/amirphl/financeiq/internal/tfutils"
)

// ErrorCreator builds an error that carries its HTTP status.
type ErrorCreator func(status int, format string, v ...interface{}) error

// ErrorProcessor writes errors to responses and reads them back.
type ErrorProcessor interface {
	Encode(ctx *fasthttp.RequestCtx, r *fasthttp.Response, err error)
	Decode(r *fasthttp.Response) error
}

type errorResponse struct {
	Error     bool   `json:"error"`
	ErrorText string `json:"errorText"`
}

type httpError struct {
	Status int
	Text   string
}

func (e *httpError) Error() string {
	return e.Text
}

// NewError is the default ErrorCreator.
func NewError(status int, format string, v ...interface{}) error {
	return &httpError{Status: status, Text: fmt.Sprintf(format, v...)}
}

type errorProcessor struct {
	defaultCode    int
	defaultMessage string
}

// Encode maps err to a status code. Errors that do not say what went wrong
// are answered with the default message.
func (e *errorProcessor) Encode(ctx *fasthttp.RequestCtx, r *fasthttp.Response, err error) {
	code, text := e.classify(err)
	r.Header.Set("Content-Type", "application/json")
	r.SetStatusCode(code)
	body, _ := json.Marshal(errorResponse{Error: true, ErrorText: text})
	r.SetBody(body)
}

func (e *errorProcessor) classify(err error) (int, string) {
	var herr *httpError
	switch {
	case errors.As(err, &herr):
		return herr.Status, herr.Text
	case errors.Is(err, overlay.ErrInvalidRequest),
		errors.Is(err, indicator.ErrInvalidParameter),
		errors.Is(err, indicator.ErrUnknownOverlay),
		errors.Is(err, tfutils.ErrUnsupportedRange):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, overlay.ErrUpstream), errors.Is(err, overlay.ErrNoData):
		return http.StatusBadGateway, err.Error()
	default:
		return e.defaultCode, e.defaultMessage
	}
}

// Decode reads an error written by Encode.
func (e *errorProcessor) Decode(r *fasthttp.Response) error {
	var resp errorResponse
	if err := json.Unmarshal(r.Body(), &resp); err != nil || resp.ErrorText == "" {
		return &httpError{Status: r.StatusCode(), Text: e.defaultMessage}
	}
	return &httpError{Status: r.StatusCode(), Text: resp.ErrorText}
}

// NewErrorProcessor ...
func NewErrorProcessor(defaultCode int, defaultMessage string) ErrorProcessor {
	return &errorProcessor{
		defaultCode:    defaultCode,
		defaultMessage: defaultMessage,
	}
}
