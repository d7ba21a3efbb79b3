package handlers

import (
	"log/slog"
	"net/http"
	"stk-relay/internal/payments"
	"stk-relay/internal/payments/entities"

	"github.com/labstack/echo/v4"
)

type GetStatusHandler struct {
	paymentService *payments.Service
}

func NewGetStatusHandler(s *payments.Service) *GetStatusHandler {
	return &GetStatusHandler{paymentService: s}
}

func (h *GetStatusHandler) Handle(c echo.Context) error {
	id := c.Param("id")

	status, err := h.paymentService.GetStatus(c.Request().Context(), id)
	if err != nil {
		slog.Error("status lookup failed", "correlationId", id, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get status"})
	}

	if status == entities.StatusNotFound {
		return c.JSON(http.StatusNotFound, map[string]entities.Status{"status": status})
	}
	return c.JSON(http.StatusOK, map[string]entities.Status{"status": status})
}
