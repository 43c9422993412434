package httpapi

import (
	"net/http"

	"forum-invitations/internal/domain"
	"forum-invitations/internal/metrics"
	"forum-invitations/internal/security"
	"forum-invitations/internal/service"

	"github.com/gorilla/mux"
)

type Options struct {
	Service          service.InvitationService
	Tokens           security.TokenManager
	Translator       Translator
	DefaultLang      string
	RegistrationType domain.RegistrationType
}

// NewRouter builds the HTTP API. Routes under /api/v1 are authenticated per
// config.RouteSecurityConfig; /metrics is open.
func NewRouter(opts Options) *mux.Router {
	responder := newResponder(opts.Translator, opts.DefaultLang)
	handler := newInvitationHandler(opts.Service, opts.RegistrationType, responder)
	auth := newAuthMiddleware(opts.Tokens, responder)

	r := mux.NewRouter()
	r.Use(metrics.Middleware)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.Middleware)
	api.HandleFunc("/invitations/verify", handler.Verify).Methods(http.MethodGet)
	api.HandleFunc("/invitations/mine", handler.Mine).Methods(http.MethodGet)
	api.HandleFunc("/invitations", handler.Create).Methods(http.MethodPost)
	api.HandleFunc("/invitations", handler.List).Methods(http.MethodGet)
	api.HandleFunc("/invitations", handler.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/registrations/complete", handler.CompleteRegistration).Methods(http.MethodPost)

	return r
}
