package rest

import (
	"encoding/json"
	"net/http"

	"github.com/LorenzoCecattoPaim/Math/internal/model"
)

// errorBody is the FastAPI error envelope. Detail is a string for raised
// HTTP errors and a list of objects for request validation errors.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

type validationItem struct {
	Msg string `json:"msg"`
}

// messageFor returns the server supplied detail, or fallback when the body
// has none or cannot be parsed.
func messageFor(data []byte, fallback string) string {
	if detail := extractDetail(data); detail != "" {
		return detail
	}
	return fallback
}

func extractDetail(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}

	var items []validationItem
	if err := json.Unmarshal(body.Detail, &items); err == nil && len(items) > 0 {
		return items[0].Msg
	}

	return ""
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return model.ErrUnauthorized
	case http.StatusNotFound:
		return model.ErrNotFound
	default:
		return model.ErrRemote
	}
}
