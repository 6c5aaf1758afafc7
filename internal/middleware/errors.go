package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/tenant-auth-gateway/internal/autherr"
)

// ErrorBody is the JSON body of every authentication failure.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Classify maps err to a status code and body. Authentication and
// authorization errors carry their own message; anything else is a
// generic 500.
func Classify(err error) (int, ErrorBody) {
	if ae, ok := autherr.As(err); ok {
		switch ae.Kind {
		case autherr.KindAuthentication:
			return statusOf(ae), ErrorBody{Error: "Authentication failed", Message: ae.Message}
		case autherr.KindAuthorization:
			return statusOf(ae), ErrorBody{Error: "Authorization failed", Message: ae.Message}
		}
	}
	return http.StatusInternalServerError, ErrorBody{
		Error:   "Internal server error",
		Message: "An unexpected error occurred during authentication",
	}
}

// Respond is Classify that also logs errors reported as 500.
func Respond(err error) (int, ErrorBody) {
	status, body := Classify(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("unexpected auth middleware error")
	}
	return status, body
}

// WriteError runs hook and writes the error response for err.
func WriteError(w http.ResponseWriter, r *http.Request, err error, hook ErrorHook) {
	runHook(hook, err, r)
	status, body := Respond(err)
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func statusOf(ae *autherr.Error) int {
	if ae.Status != 0 {
		return ae.Status
	}
	return ae.Kind.DefaultStatus()
}

func runHook(hook ErrorHook, err error, r *http.Request) {
	if hook == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("panic", fmt.Sprint(p)).Msg("error in custom error handler")
		}
	}()
	hook(err, r)
}
