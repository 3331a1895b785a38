package scancode

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	overlongDigits = 30
	overlongKeep   = 12
)

var (
	nonAlphanumeric = regexp.MustCompile(`[^0-9A-Za-z]`)
	vendorWrapper   = regexp.MustCompile(`(?i)^id(\d{11})tlm$`)
)

// Normalize turns raw decoded text into a canonical code. It never fails;
// unrecognized input comes back trimmed.
func Normalize(raw string, ch Channel) string {
	text := raw
	if id, ok := envelopeID(text); ok {
		text = id
	}

	if ch == ChannelPhysical {
		text = nonAlphanumeric.ReplaceAllString(strings.TrimSpace(text), "")
		if m := vendorWrapper.FindStringSubmatch(text); m != nil {
			text = m[1]
		}
	}

	if len(text) > overlongDigits && isDigits(text) {
		text = text[len(text)-overlongKeep:]
	}
	return strings.TrimSpace(text)
}

// envelopeID extracts the id field of a JSON object payload. Numbers are
// rendered as written so leading precision survives.
func envelopeID(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return "", false
	}
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return "", false
	}
	switch id := payload["id"].(type) {
	case string:
		if id == "" {
			return "", false
		}
		return id, true
	case json.Number:
		return id.String(), true
	default:
		return "", false
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
