package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const maxTextMessage = 300

type remoteFieldError struct {
	Field          string `json:"field"`
	Message        string `json:"message"`
	DefaultMessage string `json:"defaultMessage"`
}

type remoteErrorBody struct {
	Mensaje string             `json:"mensaje"`
	Message string             `json:"message"`
	Error   json.RawMessage    `json:"error"`
	Errors  []remoteFieldError `json:"errors"`
}

// decodeErrorMessage extracts the most specific human-readable message from a
// non-2xx body: the message field, then aggregated field messages, then a
// short plain-text body, then a generic status message.
func decodeErrorMessage(status int, body []byte) string {
	trimmed := bytes.TrimSpace(body)

	var parsed remoteErrorBody
	if len(trimmed) > 0 && json.Unmarshal(trimmed, &parsed) == nil {
		for _, msg := range []string{parsed.Mensaje, parsed.Message, rawString(parsed.Error)} {
			if msg = strings.TrimSpace(msg); msg != "" {
				return msg
			}
		}

		parts := make([]string, 0, len(parsed.Errors))
		for _, e := range parsed.Errors {
			switch {
			case e.Message != "":
				parts = append(parts, e.Message)
			case e.DefaultMessage != "":
				parts = append(parts, e.DefaultMessage)
			case e.Field != "":
				parts = append(parts, e.Field+" is invalid")
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, ", ")
		}
		return genericMessage(status)
	}

	text := string(trimmed)
	if text != "" && !strings.HasPrefix(text, "<") && len(text) < maxTextMessage {
		return text
	}
	return genericMessage(status)
}

func rawString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func genericMessage(status int) string {
	return fmt.Sprintf("request failed with status %d", status)
}
