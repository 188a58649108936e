package notify

import (
	"bytes"
	"encoding/json"
	"unicode"
)

// MaxBodyLength keeps push payloads well under the ~4KB web push limit once
// the JSON wrapping and encryption overhead are added.
const MaxBodyLength = 300

const ellipsis = "..."

// Envelope is the notification content delivered to every target.
type Envelope struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
	Data  string `json:"data"`
}

type envelopeRequest struct {
	Title *string `json:"title"`
	Body  *string `json:"body"`
	Icon  *string `json:"icon"`
	Data  *string `json:"data"`
}

// Normalize converts a raw request body into an Envelope. Bodies that look
// like a JSON object are decoded as {title, body, icon, data}; anything else,
// including JSON that fails to decode, becomes the body of a notification
// titled fallbackTitle. Plain text longer than limit runes is cut to limit
// with a trailing ellipsis; limit <= 0 disables truncation.
func Normalize(raw []byte, fallbackTitle string, limit int) Envelope {
	env := Envelope{Title: fallbackTitle}

	trimmed := bytes.TrimLeftFunc(raw, unicode.IsSpace)
	if len(bytes.TrimSpace(trimmed)) == 0 {
		return env
	}

	if trimmed[0] == '{' {
		var req envelopeRequest
		if err := json.Unmarshal(raw, &req); err == nil {
			if req.Title != nil {
				env.Title = *req.Title
			}
			env.Body = deref(req.Body)
			env.Icon = deref(req.Icon)
			env.Data = deref(req.Data)
			return env
		}
	}

	env.Body = Truncate(string(raw), limit)
	return env
}

// Truncate cuts s to at most limit runes, ending in "..." when it had to cut.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}

	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= len(ellipsis) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(ellipsis)]) + ellipsis
}

// Payload is the wire form sent to the push service.
func (e Envelope) Payload() ([]byte, error) {
	return json.Marshal(e)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
