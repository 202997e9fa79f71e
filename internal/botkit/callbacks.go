package botkit

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData parses Telebot's \f<unique>|<payload> encoding.
// Returns unique and payload (may be empty).
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	parts := strings.SplitN(raw, "|", 2)
	unique := strings.TrimSpace(parts[0])
	payload := ""
	if len(parts) == 2 {
		payload = parts[1]
	}
	return unique, payload
}

// CallbackKey returns cb.Unique if present; otherwise parses from Data.
func CallbackKey(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return cb.Unique
	}
	k, _ := ParseCallbackData(cb)
	return k
}

// CallbackPayload returns the payload (after '|') parsed from Data.
func CallbackPayload(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	_, payload := ParseCallbackData(cb)
	return payload
}

// PayloadID parses the callback payload as a single record id and rejects
// anything that is not a well-formed UUID, so malformed button data fails at
// the boundary instead of inside a handler.
func PayloadID(c tele.Context) (string, error) {
	p := strings.TrimSpace(CallbackPayload(c))
	if _, err := uuid.Parse(p); err != nil {
		return "", fmt.Errorf("callback payload %q is not a record id: %w", p, err)
	}
	return p, nil
}

// PayloadParts splits the callback payload using the given separator.
func PayloadParts(c tele.Context, sep string) ([]string, error) {
	p := CallbackPayload(c)
	if p == "" {
		return nil, fmt.Errorf("empty callback payload")
	}
	return strings.Split(p, sep), nil
}
