package gateway

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Transaction status codes returned by the gateway.
const (
	StatusSuccess       = "0"
	StatusFailed        = "1"
	StatusPending       = "2"
	StatusVoided        = "9"
	StatusCancelled     = "17"
	StatusNotFound      = "-1"
	StatusInternalError = "-2"
)

// IsFailure reports whether code is one of the terminal failure statuses.
func IsFailure(code string) bool {
	switch code {
	case StatusFailed, StatusVoided, StatusCancelled, StatusNotFound, StatusInternalError:
		return true
	}
	return false
}

// IsKnownStatus reports whether code is part of the gateway status contract.
func IsKnownStatus(code string) bool {
	return code == StatusSuccess || code == StatusPending || IsFailure(code)
}

// Notification is one inbound gateway message: a server-to-server callback,
// a browser redirect parameter set, or a query response. It is built per
// call and discarded after processing.
type Notification struct {
	MerchantID       string
	MerchantPymtID   string
	PTxnID           string
	PTxnStatus       string
	MerchantTxnAmt   string
	MerchantCurrCode string
	MerchantOrdID    string
	AuthCode         string
	PTxnMsg          string
	Sign             string
}

// OrdID returns the merchant order id, falling back to the merchant payment
// id when the gateway omitted it.
func (n *Notification) OrdID() string {
	if n.MerchantOrdID != "" {
		return n.MerchantOrdID
	}
	return n.MerchantPymtID
}

// Message returns the gateway message with the protocol default applied.
func (n *Notification) Message() string {
	if n.PTxnMsg != "" {
		return n.PTxnMsg
	}
	return "Payment failed"
}

// ParseNotification builds a Notification from flat request parameters.
func ParseNotification(values url.Values) *Notification {
	return notificationFromGetter(values.Get)
}

// ParseNotificationMap builds a Notification from an already-decoded flat
// field set, such as a query response body.
func ParseNotificationMap(fields map[string]string) *Notification {
	return notificationFromGetter(func(k string) string { return fields[k] })
}

func notificationFromGetter(get func(string) string) *Notification {
	return &Notification{
		MerchantID:       get("MerchantID"),
		MerchantPymtID:   get("MerchantPymtID"),
		PTxnID:           get("PTxnID"),
		PTxnStatus:       get("PTxnStatus"),
		MerchantTxnAmt:   get("MerchantTxnAmt"),
		MerchantCurrCode: get("MerchantCurrCode"),
		MerchantOrdID:    get("MerchantOrdID"),
		AuthCode:         get("AuthCode"),
		PTxnMsg:          get("PTxnMsg"),
		Sign:             get("Sign"),
	}
}

// DecodeEmbeddedJSON handles the gateway's tolerant delivery mode: the whole
// notification arrives as one JSON object used as a form key. It returns the
// decoded field set when such a key exists.
func DecodeEmbeddedJSON(values url.Values) (map[string]string, bool) {
	for key := range values {
		if !strings.HasPrefix(key, "{") {
			continue
		}
		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte(key), &decoded); err != nil {
			continue
		}
		fields := make(map[string]string, len(decoded))
		for k, v := range decoded {
			switch val := v.(type) {
			case string:
				fields[k] = val
			case float64:
				fields[k] = trimFloat(val)
			case bool:
				fields[k] = fmt.Sprintf("%t", val)
			}
		}
		return fields, true
	}
	return nil, false
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
