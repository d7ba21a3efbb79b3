package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"stk-relay/internal/payments"
	"stk-relay/internal/payments/entities"

	"github.com/labstack/echo/v4"
)

type ReceiveCallbackHandler struct {
	paymentService *payments.Service
}

func NewReceiveCallbackHandler(s *payments.Service) *ReceiveCallbackHandler {
	return &ReceiveCallbackHandler{paymentService: s}
}

func (h *ReceiveCallbackHandler) Handle(c echo.Context) error {
	var env entities.CallbackEnvelope
	if err := c.Bind(&env); err != nil {
		slog.Warn("undecodable callback", "error", err, "remoteIp", c.RealIP())
		return c.NoContent(http.StatusBadRequest)
	}

	_, err := h.paymentService.HandleCallback(c.Request().Context(), env)
	switch {
	case err == nil:
		return c.NoContent(http.StatusOK)
	case errors.Is(err, entities.ErrMalformedCallback):
		slog.Warn("malformed callback", "error", err, "remoteIp", c.RealIP())
		return c.NoContent(http.StatusBadRequest)
	default:
		slog.Error("callback processing failed", "error", err)
		return c.NoContent(http.StatusInternalServerError)
	}
}
