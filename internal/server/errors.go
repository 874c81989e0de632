package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"agentgate/internal/agent"
	"agentgate/internal/catalog"
	"agentgate/internal/translator"
)

const (
	typeInvalidRequest     = "invalid_request_error"
	typeBackendUnavailable = "backend_unavailable"
	typeBackendTimeout     = "backend_timeout"
	typeBackendRejected    = "backend_rejected"
	typeServerError        = "server_error"

	// statusClientClosedRequest follows the nginx convention for requests
	// abandoned by the client.
	statusClientClosedRequest = 499
)

type requestError struct {
	Status  int
	Message string
	Type    string
	Code    string
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code,omitempty"`
	} `json:"error"`
}

func writeError(c echo.Context, status int, message, errType, code string) error {
	var payload errorBody
	payload.Error.Message = message
	payload.Error.Type = errType
	payload.Error.Code = code
	return c.JSON(status, payload)
}

// openAIErrorHandler renders err as an OpenAI error envelope. The request
// logger hands every error to it first and then returns the same error up the
// chain, so a committed response means the error was already written.
func openAIErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var werr error
	var reqErr requestError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &reqErr):
		werr = writeError(c, reqErr.Status, reqErr.Message, reqErr.Type, reqErr.Code)
	case errors.As(err, &he):
		werr = writeError(c, he.Code, fmt.Sprint(he.Message), typeInvalidRequest, "")
	default:
		werr = writeError(c, http.StatusInternalServerError, "internal server error", typeServerError, "")
	}
	if werr != nil {
		slog.Error("failed to write error response", "uri", c.Request().RequestURI, "err", werr)
	}
}

// toHTTPError maps the error taxonomy onto status codes and envelope types.
// Backend messages are passed through verbatim.
func toHTTPError(err error) error {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	switch {
	case errors.Is(err, context.Canceled):
		return requestError{Status: statusClientClosedRequest, Message: "request cancelled by client", Type: typeInvalidRequest}
	case errors.Is(err, translator.ErrInvalidRequest):
		return requestError{Status: http.StatusBadRequest, Message: err.Error(), Type: typeInvalidRequest}
	case errors.Is(err, catalog.ErrNotFound):
		return requestError{Status: http.StatusNotFound, Message: err.Error(), Type: typeInvalidRequest, Code: "model_not_found"}
	case errors.Is(err, agent.ErrBackendTimeout):
		return requestError{Status: http.StatusGatewayTimeout, Message: err.Error(), Type: typeBackendTimeout}
	case errors.Is(err, agent.ErrBackendRejected):
		return requestError{Status: http.StatusBadGateway, Message: err.Error(), Type: typeBackendRejected}
	case errors.Is(err, agent.ErrBackendUnavailable):
		return requestError{Status: http.StatusServiceUnavailable, Message: err.Error(), Type: typeBackendUnavailable}
	}

	slog.Error("unclassified error", "err", err)
	return requestError{Status: http.StatusInternalServerError, Message: "internal server error", Type: typeServerError}
}
