package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
)

const SignatureHeader = "X-Provider-Signature"

var (
	ErrBadSignature = errors.New("provider: webhook signature mismatch")
	ErrBadEvent     = errors.New("provider: malformed webhook event")
)

// Sign returns the hex HMAC-SHA256 of body. Exposed for tests and local tooling.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against body in constant time.
// An optional "sha256=" prefix is accepted.
func VerifySignature(secret string, body []byte, signature string) error {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	got, err := hex.DecodeString(signature)
	if err != nil || secret == "" {
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrBadSignature
	}
	return nil
}

// ParseAssistantEvent decodes a webhook body; the nested assistant keeps its raw JSON.
func ParseAssistantEvent(body []byte) (AssistantEvent, error) {
	var env struct {
		Type      AssistantEventType `json:"type"`
		Assistant json.RawMessage    `json:"assistant"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return AssistantEvent{}, errors.Join(ErrBadEvent, err)
	}
	switch env.Type {
	case AssistantCreated, AssistantUpdated, AssistantDeleted:
	default:
		return AssistantEvent{}, errors.Join(ErrBadEvent, errors.New("unknown type "+string(env.Type)))
	}
	a, err := DecodeAssistant(env.Assistant)
	if err != nil {
		return AssistantEvent{}, errors.Join(ErrBadEvent, err)
	}
	return AssistantEvent{Type: env.Type, Assistant: a}, nil
}
