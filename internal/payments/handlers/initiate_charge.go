package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"stk-relay/internal/payments"
	"stk-relay/internal/payments/entities"

	"github.com/labstack/echo/v4"
)

type initiateChargeRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Phone       string `json:"phone"`
	Amount      any    `json:"amount"`
}

type InitiateChargeHandler struct {
	paymentService *payments.Service
}

func NewInitiateChargeHandler(s *payments.Service) *InitiateChargeHandler {
	return &InitiateChargeHandler{paymentService: s}
}

func (h *InitiateChargeHandler) Handle(c echo.Context) error {
	var req initiateChargeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	phone := req.PhoneNumber
	if phone == "" {
		phone = req.Phone
	}

	ack, err := h.paymentService.InitiateCharge(c.Request().Context(), phone, req.Amount)
	if err != nil {
		return writeInitiateError(c, err)
	}

	if len(ack.Raw) > 0 {
		return c.JSONBlob(http.StatusOK, ack.Raw)
	}
	return c.JSON(http.StatusOK, ack)
}

func writeInitiateError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, entities.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case entities.IsUpstream(err):
		slog.Error("stk push initiation failed", "error", err, "requestId", requestID(c))
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "STK push initiation failed"})
	default:
		slog.Error("stk push initiation failed", "error", err, "requestId", requestID(c))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}
