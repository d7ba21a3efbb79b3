package handlers

import (
	"log/slog"
	"net/http"
	"stk-relay/internal/payments"
	"stk-relay/internal/payments/entities"

	"github.com/labstack/echo/v4"
)

type GetLedgerHandler struct {
	paymentService *payments.Service
}

func NewGetLedgerHandler(s *payments.Service) *GetLedgerHandler {
	return &GetLedgerHandler{paymentService: s}
}

func (h *GetLedgerHandler) Handle(c echo.Context) error {
	id := c.Param("id")

	entries, err := h.paymentService.GetLedgerHistory(c.Request().Context(), id)
	if err != nil {
		slog.Error("ledger lookup failed", "correlationId", id, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to read ledger"})
	}
	if entries == nil {
		entries = []entities.LedgerEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}
