package paymcp

import (
	"fmt"
	"strings"
)

// NormalizedStatus is the only status vocabulary flows branch on
type NormalizedStatus string

const (
	StatusPaid     NormalizedStatus = "paid"
	StatusCanceled NormalizedStatus = "canceled"
	StatusPending  NormalizedStatus = "pending"
)

var paidStatuses = map[string]struct{}{
	"paid":                {},
	"succeeded":           {},
	"success":             {},
	"complete":            {},
	"completed":           {},
	"ok":                  {},
	"no_payment_required": {},
}

var canceledStatuses = map[string]struct{}{
	"canceled":  {},
	"cancelled": {},
	"void":      {},
	"failed":    {},
	"declined":  {},
	"error":     {},
}

// NormalizeStatus maps a provider-native status onto paid, canceled or pending.
// Matching is case-insensitive. Anything unrecognized is pending.
func NormalizeStatus(status string) NormalizedStatus {
	s := strings.ToLower(strings.TrimSpace(status))
	if _, ok := paidStatuses[s]; ok {
		return StatusPaid
	}
	if _, ok := canceledStatuses[s]; ok {
		return StatusCanceled
	}
	return StatusPending
}

// NormalizeStatusValue normalizes a decoded JSON status value. nil is pending.
func NormalizeStatusValue(v interface{}) NormalizedStatus {
	switch s := v.(type) {
	case nil:
		return StatusPending
	case string:
		return NormalizeStatus(s)
	case fmt.Stringer:
		return NormalizeStatus(s.String())
	default:
		return NormalizeStatus(fmt.Sprint(v))
	}
}
