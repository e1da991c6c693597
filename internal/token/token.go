// Package token turns raw QR payloads into scan keys.
package token

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"gateattend/internal/model"
)

// LegacyPrefix is carried by QR codes printed before the EDU id scheme.
const LegacyPrefix = "qr_"

var (
	canonicalID = regexp.MustCompile(`EDU-\d{4}-\d{4}-\d{4}`)
	legacyID    = regexp.MustCompile(`EDU-\d{2}-\d{4}-\d{4}`)
)

// Normalize derives the scan key from a raw payload. Accepted payloads are a
// bare identifier, a JSON object with studentId or id, any string containing
// an EDU identifier, and any of those behind the legacy qr_ prefix.
func Normalize(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	key = strings.TrimPrefix(key, LegacyPrefix)
	if key == "" {
		return "", model.ErrEmptyToken
	}
	if id, ok := fromJSON(key); ok {
		return id, nil
	}
	if m := canonicalID.FindString(key); m != "" {
		return m, nil
	}
	if m := legacyID.FindString(key); m != "" {
		return m, nil
	}
	return key, nil
}

func fromJSON(s string) (string, bool) {
	if !strings.HasPrefix(s, "{") {
		return "", false
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return "", false
	}
	for _, field := range []string{"studentId", "id"} {
		if id := stringify(payload[field]); id != "" {
			return id, true
		}
	}
	return "", false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

// IsLRN reports whether key has the shape of a 12-digit learner reference number.
func IsLRN(key string) bool {
	if len(key) != 12 {
		return false
	}
	for _, c := range key {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
