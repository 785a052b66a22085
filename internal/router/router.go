package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"paydibs/internal/handler"
)

// Setup configures all routes for the Echo server.
func Setup(e *echo.Echo, callbacks *handler.PaymentCallbackHandler) {
	e.Use(echomw.Recover())

	// Gateway channels. Notify is server-to-server; Response is the
	// browser coming back from the hosted page and may arrive as GET or
	// POST depending on the gateway configuration.
	paymentGroup := e.Group("/payment/paydibs")
	paymentGroup.POST("/notify", callbacks.Notify)
	paymentGroup.GET("/response", callbacks.Response)
	paymentGroup.POST("/response", callbacks.Response)

	// Storefront-facing helpers.
	paymentGroup.GET("/prepare", callbacks.Prepare)
	paymentGroup.POST("/prepare", callbacks.Prepare)
	paymentGroup.GET("/requery", callbacks.Requery)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}
