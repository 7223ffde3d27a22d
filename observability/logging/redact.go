package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces masked field values in emitted log lines.
const RedactedValue = "[REDACTED]"

// maskKeepPrefix is how many leading characters of an address survive
// masking. Enough to tell module accounts apart, not enough to identify a
// holder.
const maskKeepPrefix = 8

// Keys that never carry holder addresses and may be emitted verbatim.
var redactionAllowlist = map[string]struct{}{
	"service":       {},
	"env":           {},
	"message":       {},
	"severity":      {},
	"timestamp":     {},
	"error":         {},
	"denom":         {},
	"account_id":    {},
	"amount":        {},
	"amount_scaled": {},
	"refund":        {},
}

// IsAllowlisted reports whether a log key may carry its value unmasked.
func IsAllowlisted(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	_, ok := redactionAllowlist[normalized]
	return ok
}

// RedactionAllowlist returns a sorted copy of the keys exempt from masking.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(redactionAllowlist))
	for key := range redactionAllowlist {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskAddress shortens an account address to its leading characters so log
// lines stay correlatable without spelling the holder out.
func MaskAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if len(addr) <= maskKeepPrefix {
		return addr
	}
	return addr[:maskKeepPrefix] + "..."
}

// MaskField builds a slog attribute, redacting the value in full unless the
// key is allowlisted. The original key casing is preserved.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
