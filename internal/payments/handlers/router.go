package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"stk-relay/internal/payments"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type RouterConfig struct {
	CallbackSecret string
}

func NewRouter(service *payments.Service, cfg RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = JSONSerializer{}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			slog.LogAttrs(context.Background(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("requestId", v.RequestID),
			)
			return nil
		},
	}))
	e.Use(middleware.CORS())

	initiate := NewInitiateChargeHandler(service)
	e.POST("/stk", initiate.Handle)
	e.POST("/payments", initiate.Handle)

	e.POST("/callback", NewReceiveCallbackHandler(service).Handle, CallbackSecret(cfg.CallbackSecret))
	e.GET("/status/:id", NewGetStatusHandler(service).Handle)
	e.GET("/payments/:id/ledger", NewGetLedgerHandler(service).Handle)

	health := func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
	e.GET("/", health)
	e.GET("/health", health)

	return e
}
