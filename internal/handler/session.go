package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"paydibs/internal/models"
)

// Flash message levels shown by the storefront.
const (
	FlashSuccess = "success"
	FlashNotice  = "notice"
	FlashError   = "error"
)

// CheckoutSession carries the browser continuation state the redirect
// channel sets: last order markers for the success page and a flash message
// for either landing page.
type CheckoutSession interface {
	SetLastOrder(c echo.Context, order *models.Order)
	Flash(c echo.Context, level, message string)
}

type sessionPayload struct {
	LastOrderID     uint   `json:"last_order_id,omitempty"`
	LastQuoteID     uint   `json:"last_quote_id,omitempty"`
	LastRealOrderID string `json:"last_real_order_id,omitempty"`
	LastOrderStatus string `json:"last_order_status,omitempty"`
	Success         bool   `json:"success,omitempty"`
	FlashLevel      string `json:"flash_level,omitempty"`
	FlashMessage    string `json:"flash_message,omitempty"`
}

// cookieSession stores the continuation state in a short-lived cookie read
// by the storefront on the next page load.
type cookieSession struct {
	name string
}

func NewCookieSession() CheckoutSession {
	return &cookieSession{name: "paydibs_checkout"}
}

func (s *cookieSession) SetLastOrder(c echo.Context, order *models.Order) {
	p := s.read(c)
	p.LastOrderID = order.ID
	p.LastQuoteID = order.QuoteID
	p.LastRealOrderID = order.IncrementID
	p.LastOrderStatus = order.Status
	p.Success = true
	s.write(c, p)
}

func (s *cookieSession) Flash(c echo.Context, level, message string) {
	p := s.read(c)
	p.FlashLevel = level
	p.FlashMessage = message
	s.write(c, p)
}

func (s *cookieSession) read(c echo.Context) *sessionPayload {
	// Writes earlier in the same request take precedence over the inbound
	// cookie, so consecutive updates accumulate into one Set-Cookie.
	if pending, ok := c.Get(s.name).(*sessionPayload); ok {
		return pending
	}
	p := &sessionPayload{}
	cookie, err := c.Cookie(s.name)
	if err != nil {
		return p
	}
	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return p
	}
	_ = json.Unmarshal(raw, p)
	return p
}

func (s *cookieSession) write(c echo.Context, p *sessionPayload) {
	c.Set(s.name, p)
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	c.SetCookie(&http.Cookie{
		Name:     s.name,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		Expires:  time.Now().Add(30 * time.Minute),
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	})
}
