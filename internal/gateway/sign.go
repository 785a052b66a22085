package gateway

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
)

// Signer produces and verifies the SHA-512 digests shared with the Paydibs
// gateway. Each message type has its own fixed field order; the orders are
// part of the wire contract and must never be mixed.
type Signer struct {
	merchantPassword string
}

func NewSigner(merchantPassword string) *Signer {
	return &Signer{merchantPassword: merchantPassword}
}

// SignPaymentRequest signs a TxnType=PAY request. Field order:
// password + TxnType + MerchantID + MerchantPymtID + MerchantOrdID +
// MerchantRURL + MerchantTxnAmt + MerchantCurrCode + CustIP + PageTimeout +
// MerchantCallbackURL + Token.
func (s *Signer) SignPaymentRequest(p *PaymentRequest) string {
	pageTimeout := p.PageTimeout
	if pageTimeout == 0 {
		pageTimeout = 300
	}
	return digest(
		s.merchantPassword,
		p.TxnType,
		p.MerchantID,
		p.MerchantPymtID,
		p.MerchantOrdID,
		p.MerchantRURL,
		p.MerchantTxnAmt,
		p.MerchantCurrCode,
		p.CustIP,
		strconv.Itoa(pageTimeout),
		p.MerchantCallbackURL,
		p.Token,
	)
}

// SignQueryRequest signs a TxnType=QUERY request. The query field order is
// shorter than the notification one: password + MerchantID + MerchantPymtID +
// MerchantTxnAmt + MerchantCurrCode.
func (s *Signer) SignQueryRequest(q *QueryRequest) string {
	return digest(
		s.merchantPassword,
		q.MerchantID,
		q.MerchantPymtID,
		q.MerchantTxnAmt,
		q.MerchantCurrCode,
	)
}

// SignNotification computes the digest for a notification or query response.
// Field order: password + MerchantID + MerchantPymtID + PTxnID +
// MerchantOrdID (falling back to MerchantPymtID) + MerchantTxnAmt +
// MerchantCurrCode + PTxnStatus + AuthCode. Missing optional fields
// contribute an empty string in position, never a gap.
func (s *Signer) SignNotification(n *Notification) string {
	return digest(
		s.merchantPassword,
		n.MerchantID,
		n.MerchantPymtID,
		n.PTxnID,
		n.OrdID(),
		normalizeAmount(n.MerchantTxnAmt),
		n.MerchantCurrCode,
		n.PTxnStatus,
		n.AuthCode,
	)
}

// VerifyNotification checks the Sign field of a notification against the
// computed digest in constant time.
func (s *Signer) VerifyNotification(n *Notification) bool {
	expected := s.SignNotification(n)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(n.Sign)) == 1
}

func digest(fields ...string) string {
	sum := sha512.Sum512([]byte(strings.Join(fields, "")))
	return hex.EncodeToString(sum[:])
}

// The gateway underscore-escapes the decimal point in amounts on some
// notification paths; the signing string always uses the dotted form.
func normalizeAmount(amount string) string {
	return strings.ReplaceAll(amount, "_", ".")
}
