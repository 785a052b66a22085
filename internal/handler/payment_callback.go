package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paydibs/internal/config"
	"paydibs/internal/cron"
	"paydibs/internal/gateway"
	"paydibs/internal/models"
	"paydibs/internal/reconcile"
)

// PaymentCallbackHandler owns the gateway-facing HTTP entry points: the
// server-to-server notification, the browser redirect, the hosted-page
// prepare call and the manual requery trigger. All business decisions live
// in the reconcile engine; the handlers only translate outcomes into each
// channel's response shape.
type PaymentCallbackHandler struct {
	engine   *reconcile.Engine
	orders   reconcile.OrderStore
	client   *gateway.Client
	poller   *cron.Poller
	session  CheckoutSession
	checkout config.CheckoutConfig
	logger   *zap.Logger
}

func NewPaymentCallbackHandler(
	engine *reconcile.Engine,
	orders reconcile.OrderStore,
	client *gateway.Client,
	poller *cron.Poller,
	session CheckoutSession,
	checkout config.CheckoutConfig,
	logger *zap.Logger,
) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{
		engine:   engine,
		orders:   orders,
		client:   client,
		poller:   poller,
		session:  session,
		checkout: checkout,
		logger:   logger,
	}
}

// ── Notify: server-to-server callback ────────────────────────────────

// Notify handles the machine-to-machine notification. The gateway retries
// until it reads a 200 with an OK body, so duplicates answer OK too.
func (h *PaymentCallbackHandler) Notify(c echo.Context) error {
	values, err := c.FormParams()
	if err != nil {
		return c.String(http.StatusOK, "ERROR: Missing required parameters")
	}

	n := gateway.ParseNotification(values)
	if n.MerchantPymtID == "" && n.PTxnStatus == "" {
		// Tolerant mode: the whole payload can arrive as a JSON object
		// used as a form key.
		if fields, ok := gateway.DecodeEmbeddedJSON(values); ok {
			h.logger.Info("Notify: extracted JSON payload from form key")
			n = gateway.ParseNotificationMap(fields)
		}
	}

	if n.MerchantPymtID == "" || n.PTxnStatus == "" {
		h.logger.Warn("Notify: notification missing required parameters")
		return c.String(http.StatusOK, "ERROR: Missing required parameters")
	}

	res, err := h.engine.Apply(c.Request().Context(), n)
	if err != nil {
		return c.String(http.StatusOK, notifyError(err))
	}

	if res.Outcome == reconcile.OutcomeDuplicate {
		switch res.Reason {
		case reconcile.ReasonTxnProcessed:
			return c.String(http.StatusOK, "OK: Notification already processed")
		case reconcile.ReasonOrderProcessed:
			return c.String(http.StatusOK, "OK: Order already processed")
		default:
			return c.String(http.StatusOK, "OK")
		}
	}
	return c.String(http.StatusOK, "OK")
}

func notifyError(err error) string {
	switch {
	case errors.Is(err, reconcile.ErrOrderNotFound):
		return "ERROR: Order not found"
	case errors.Is(err, reconcile.ErrInvalidSignature):
		return "ERROR: Invalid signature"
	case errors.Is(err, reconcile.ErrMissingField):
		return "ERROR: Missing required parameters"
	case errors.Is(err, reconcile.ErrUnknownStatus):
		return "ERROR: Unknown transaction status"
	default:
		return "ERROR: " + err.Error()
	}
}

// ── Response: browser redirect ───────────────────────────────────────

// Response handles the browser coming back from the hosted payment page.
// Validation failures land on the cart page with a generic message; internal
// detail never reaches the browser.
func (h *PaymentCallbackHandler) Response(c echo.Context) error {
	values, err := c.FormParams()
	if err != nil {
		h.session.Flash(c, FlashError, "Invalid payment response received.")
		return c.Redirect(http.StatusFound, h.checkout.CartURL)
	}

	n := gateway.ParseNotification(values)
	if n.MerchantPymtID == "" || n.PTxnStatus == "" || n.PTxnID == "" {
		h.session.Flash(c, FlashError, "Invalid payment response received.")
		return c.Redirect(http.StatusFound, h.checkout.CartURL)
	}

	res, err := h.engine.Apply(c.Request().Context(), n)
	if err != nil {
		return h.redirectError(c, n, err)
	}

	switch {
	case res.Success():
		h.session.SetLastOrder(c, res.Order)
		h.session.Flash(c, FlashSuccess, "Your payment was successful.")
		return c.Redirect(http.StatusFound, h.checkout.SuccessURL)
	case res.Pending():
		h.session.Flash(c, FlashNotice, "Your payment is being processed. We will notify you when it completes.")
		return c.Redirect(http.StatusFound, h.checkout.SuccessURL)
	default:
		h.session.Flash(c, FlashError, fmt.Sprintf("Payment failed: %s", n.Message()))
		return c.Redirect(http.StatusFound, h.checkout.CartURL)
	}
}

func (h *PaymentCallbackHandler) redirectError(c echo.Context, n *gateway.Notification, err error) error {
	switch {
	case errors.Is(err, reconcile.ErrOrderNotFound):
		h.session.Flash(c, FlashError, "Order not found.")
	case errors.Is(err, reconcile.ErrInvalidSignature):
		h.session.Flash(c, FlashError, "Invalid payment signature.")
	default:
		h.logger.Error("Response: error processing redirect",
			zap.String("order", n.MerchantPymtID), zap.Error(err))
		h.session.Flash(c, FlashError, "Your payment could not be processed.")
	}
	return c.Redirect(http.StatusFound, h.checkout.CartURL)
}

// ── Prepare: hosted payment page URL ─────────────────────────────────

// Prepare builds the signed hosted-page URL for an order awaiting payment.
func (h *PaymentCallbackHandler) Prepare(c echo.Context) error {
	incrementID := c.QueryParam("order_id")
	if incrementID == "" {
		incrementID = c.FormValue("order_id")
	}
	if incrementID == "" {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"error": true, "message": "Order not found.",
		})
	}

	order, err := h.orders.FindByIncrementID(c.Request().Context(), incrementID)
	if err != nil {
		h.logger.Warn("Prepare: order not found", zap.String("order", incrementID))
		return c.JSON(http.StatusOK, map[string]interface{}{
			"error": true, "message": "Order not found.",
		})
	}
	if order.PaymentMethod != models.PaymentMethodPaydibs {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"error": true, "message": "Payment method not correct.",
		})
	}

	baseURL := c.Scheme() + "://" + c.Request().Host
	req := &gateway.PaymentRequest{
		MerchantPymtID:      order.IncrementID,
		MerchantOrdID:       order.IncrementID,
		MerchantOrdDesc:     fmt.Sprintf("Order #%s", order.IncrementID),
		MerchantTxnAmt:      order.AmountString(),
		MerchantCurrCode:    order.CurrencyCode,
		MerchantRURL:        baseURL + "/payment/paydibs/response",
		CustIP:              c.RealIP(),
		CustName:            order.CustomerName,
		CustEmail:           order.CustomerEmail,
		CustPhone:           order.CustomerPhone,
		MerchantCallbackURL: baseURL + "/payment/paydibs/notify",
	}

	h.logger.Info("Prepare: payment URL built", zap.String("order", order.IncrementID))
	return c.JSON(http.StatusOK, map[string]string{"paymentUrl": h.client.PaymentURL(req)})
}

// ── Requery: manual poll trigger ─────────────────────────────────────

// Requery runs the pending-order reconciliation on demand.
func (h *PaymentCallbackHandler) Requery(c echo.Context) error {
	settled := h.poller.Run(c.Request().Context(), time.Now())
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Successfully queried pending Paydibs orders, %d settled", settled),
	})
}
