package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vadim/gigfinder/internal/httpx/response"
	"github.com/vadim/gigfinder/internal/session"
)

// MaxJSONBody caps request bodies of JSON endpoints
const MaxJSONBody = 1 << 20

// actorID returns the signed-in user, writing 401 when there is none
func actorID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := session.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "not signed in")
		return "", false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.BadRequest(w, "invalid JSON")
		return false
	}
	return true
}

// handleDomainError writes err by kind and logs server-side failures
func handleDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if code := response.Fail(w, err); code >= http.StatusInternalServerError {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", code,
			"error", err,
		)
	}
}
