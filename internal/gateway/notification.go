package gateway

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// Notification is the untrusted payload the processor posts to our webhook
// endpoint (and the shape its status endpoint returns). Only the signature
// check makes it trustworthy.
type Notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	TransactionID     string `json:"transaction_id"`
	SignatureKey      string `json:"signature_key"`
}

// StatusClass is the tagged classification of a processor status. Anything
// the classifier does not recognize maps to ClassUnrecognized, which leaves
// the order PENDING instead of guessing.
type StatusClass int

const (
	ClassUnrecognized StatusClass = iota
	ClassPending
	ClassChallenge
	ClassSettled
	ClassFailed
)

func (c StatusClass) String() string {
	switch c {
	case ClassPending:
		return "pending"
	case ClassChallenge:
		return "challenge"
	case ClassSettled:
		return "settled"
	case ClassFailed:
		return "failed"
	default:
		return "unrecognized"
	}
}

// Class maps the processor's transaction and fraud statuses onto a status
// class. A capture is only settled once fraud review accepts it.
func (n *Notification) Class() StatusClass {
	switch n.TransactionStatus {
	case "capture":
		switch n.FraudStatus {
		case "accept":
			return ClassSettled
		case "challenge":
			return ClassChallenge
		default:
			return ClassUnrecognized
		}
	case "settlement":
		return ClassSettled
	case "pending":
		return ClassPending
	case "deny", "cancel", "expire":
		return ClassFailed
	default:
		return ClassUnrecognized
	}
}

// Signature computes the keyed digest the processor attaches to every
// notification: SHA-512 over reference, status code, gross amount, and the
// shared server key.
func Signature(reference, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(reference + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature recomputes the expected signature and compares it in
// constant time.
func (n *Notification) VerifySignature(serverKey string) bool {
	expected := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(n.SignatureKey)) == 1
}
