package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"paydibs/internal/pkg/httpclient"
)

// QueryRequest is an outbound TxnType=QUERY status request.
type QueryRequest struct {
	MerchantID       string
	MerchantPymtID   string
	MerchantTxnAmt   string
	MerchantCurrCode string
}

// PaymentRequest is an outbound TxnType=PAY hosted-page request.
type PaymentRequest struct {
	TxnType             string
	MerchantID          string
	MerchantPymtID      string
	MerchantOrdID       string
	MerchantOrdDesc     string
	MerchantTxnAmt      string
	MerchantCurrCode    string
	MerchantRURL        string
	CustIP              string
	CustName            string
	CustEmail           string
	CustPhone           string
	MerchantCallbackURL string
	PageTimeout         int
	Token               string
}

// ClientConfig carries the gateway connection settings.
type ClientConfig struct {
	APIURL       string
	MerchantID   string
	PageTimeout  int
	QueryTimeout time.Duration
}

// Client talks to the Paydibs gateway: it builds signed hosted-page URLs and
// actively queries transaction status for unconfirmed orders.
type Client struct {
	http   *httpclient.Client
	signer *Signer
	cfg    ClientConfig
	logger *zap.Logger
}

func NewClient(cfg ClientConfig, signer *Signer, logger *zap.Logger) *Client {
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:   httpclient.New().WithTimeout(timeout),
		signer: signer,
		cfg:    cfg,
		logger: logger,
	}
}

// MerchantID returns the configured merchant identifier.
func (c *Client) MerchantID() string {
	return c.cfg.MerchantID
}

// QueryStatus asks the gateway for the current status of a payment. The
// response is a flat JSON field set shaped like a notification.
func (c *Client) QueryStatus(ctx context.Context, merchantPymtID, amount, currency string) (*Notification, error) {
	req := &QueryRequest{
		MerchantID:       c.cfg.MerchantID,
		MerchantPymtID:   merchantPymtID,
		MerchantTxnAmt:   amount,
		MerchantCurrCode: currency,
	}

	params := map[string]string{
		"TxnType":          "QUERY",
		"MerchantID":       req.MerchantID,
		"MerchantPymtID":   req.MerchantPymtID,
		"MerchantTxnAmt":   req.MerchantTxnAmt,
		"MerchantCurrCode": req.MerchantCurrCode,
		"Sign":             c.signer.SignQueryRequest(req),
	}

	body, err := c.http.Get(ctx, c.cfg.APIURL, params)
	if err != nil {
		return nil, fmt.Errorf("query payment status: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse query response: %w", err)
	}
	if errMsg, ok := raw["error"].(string); ok && errMsg != "" {
		return nil, fmt.Errorf("gateway error: %s", errMsg)
	}

	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case float64:
			fields[k] = trimFloat(val)
		}
	}

	n := ParseNotificationMap(fields)
	if n.MerchantPymtID == "" {
		n.MerchantPymtID = merchantPymtID
	}
	c.logger.Debug("Query response received",
		zap.String("merchant_pymt_id", merchantPymtID),
		zap.String("ptxn_status", n.PTxnStatus),
		zap.String("ptxn_id", n.PTxnID))
	return n, nil
}

// PaymentURL builds the signed hosted payment page URL for a PAY request.
// Ampersands inside the return and callback URLs are escaped with semicolons
// before signing, as the gateway requires.
func (c *Client) PaymentURL(req *PaymentRequest) string {
	if req.TxnType == "" {
		req.TxnType = "PAY"
	}
	if req.MerchantID == "" {
		req.MerchantID = c.cfg.MerchantID
	}
	if req.PageTimeout == 0 {
		req.PageTimeout = c.cfg.PageTimeout
	}
	req.MerchantRURL = escapeCallbackURL(req.MerchantRURL)
	req.MerchantCallbackURL = escapeCallbackURL(req.MerchantCallbackURL)

	params := url.Values{}
	params.Set("TxnType", req.TxnType)
	params.Set("MerchantID", req.MerchantID)
	params.Set("MerchantPymtID", req.MerchantPymtID)
	params.Set("MerchantOrdID", req.MerchantOrdID)
	params.Set("MerchantOrdDesc", req.MerchantOrdDesc)
	params.Set("MerchantTxnAmt", req.MerchantTxnAmt)
	params.Set("MerchantCurrCode", req.MerchantCurrCode)
	params.Set("MerchantRURL", req.MerchantRURL)
	params.Set("CustIP", req.CustIP)
	params.Set("CustName", req.CustName)
	params.Set("CustEmail", req.CustEmail)
	params.Set("CustPhone", req.CustPhone)
	params.Set("MerchantCallbackURL", req.MerchantCallbackURL)
	params.Set("PageTimeout", strconv.Itoa(req.PageTimeout))
	params.Set("Sign", c.signer.SignPaymentRequest(req))

	return strings.TrimRight(c.cfg.APIURL, "?") + "?" + params.Encode()
}

func escapeCallbackURL(u string) string {
	return strings.ReplaceAll(u, "&", ";")
}
