package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"forum-invitations/internal/logger"
	"forum-invitations/internal/service"

	"golang.org/x/text/language"
)

const (
	keyInvalidData  = "[[error:invalid-data]]"
	keyNotLoggedIn  = "[[error:not-logged-in]]"
	keyNoPrivileges = "[[error:no-privileges]]"
	keyUnknown      = "[[error:unknown]]"
)

// Translator renders "[[namespace:key]]" tokens
type Translator interface {
	Compile(text, lang string) string
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type responder struct {
	translator  Translator
	defaultLang string
}

func newResponder(t Translator, defaultLang string) *responder {
	return &responder{translator: t, defaultLang: defaultLang}
}

// language picks the caller's preferred language from Accept-Language
func (rs *responder) language(r *http.Request) string {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return rs.defaultLang
	}
	return tags[0].String()
}

func (rs *responder) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func (rs *responder) writeKey(w http.ResponseWriter, r *http.Request, status int, key string) {
	rs.writeJSON(w, status, errorResponse{
		Error:   key,
		Message: rs.translator.Compile(key, rs.language(r)),
	})
}

// writeError maps service errors to a status and translation key
func (rs *responder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	key := service.ErrorKey(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrDuplicateInvitation):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidUsername):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrAdminOnly), errors.Is(err, service.ErrInviteOnly):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrInvalidInviter), errors.Is(err, service.ErrInvalidInvitation):
		status = http.StatusBadRequest
	default:
		logger.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		key = keyUnknown
	}
	rs.writeKey(w, r, status, key)
}
