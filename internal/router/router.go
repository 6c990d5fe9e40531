package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"topupstore/internal/handler"
	"topupstore/internal/middleware"
	"topupstore/internal/orderflow"
)

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	svc *orderflow.Service,
	baseURL string,
	deduper middleware.NotificationDeduper,
	logger *zap.Logger,
) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	orderHandler := handler.NewOrderHandler(svc, baseURL, logger)
	callbackHandler := handler.NewCallbackHandler(svc, logger)

	// Checkout flow
	e.POST("/order", orderHandler.Create)
	e.GET("/order/:order_id", orderHandler.Show)
	e.GET("/order/:order_id/check-status", orderHandler.CheckStatus)
	e.POST("/order/:order_id/mark-paid", orderHandler.ForcePaid)

	// Lookup surface
	e.GET("/orders", orderHandler.List)
	e.GET("/payment/:payment_id", orderHandler.ShowByPayment)

	// Universal callback endpoint. Providers hit it with whatever method
	// and path suffix their integration uses; classification happens
	// inside. Gateway notifications are deduplicated before processing.
	callbackGroup := e.Group("/callback")
	callbackGroup.Use(middleware.GatewayNotificationDedup(deduper))
	callbackGroup.Any("", callbackHandler.Handle)
	callbackGroup.Any("/", callbackHandler.Handle)
	callbackGroup.Any("/*", callbackHandler.Handle)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}
