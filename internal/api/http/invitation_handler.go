package httpapi

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"

	"forum-invitations/internal/domain"
	"forum-invitations/internal/security"
	"forum-invitations/internal/service"
)

type InvitationHandler struct {
	svc              service.InvitationService
	registrationType domain.RegistrationType
	responder        *responder
}

func newInvitationHandler(svc service.InvitationService, registrationType domain.RegistrationType, r *responder) *InvitationHandler {
	return &InvitationHandler{svc: svc, registrationType: registrationType, responder: r}
}

type createInvitationRequest struct {
	Email        string   `json:"email"`
	GroupsToJoin []string `json:"groups_to_join"`
}

type myInvitationsResponse struct {
	Count       int      `json:"count"`
	Invitations []string `json:"invitations"`
}

type deleteInvitationRequest struct {
	InvitedBy string `json:"invited_by"`
	Email     string `json:"email"`
}

type completeRegistrationRequest struct {
	UID   int32  `json:"uid"`
	Token string `json:"token"`
	Email string `json:"email"`
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// Create issues an invitation from the caller
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	var req createInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeKey(w, r, http.StatusBadRequest, keyInvalidData)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !validEmail(req.Email) {
		h.responder.writeKey(w, r, http.StatusBadRequest, keyInvalidData)
		return
	}
	if h.registrationType.AdminOnly() && !claims.HasRole(security.RoleAdmin) {
		h.responder.writeKey(w, r, http.StatusForbidden, keyNoPrivileges)
		return
	}

	if err := h.svc.CreateAndSendInvitation(r.Context(), claims.UserID, req.Email, req.GroupsToJoin); err != nil {
		h.responder.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Mine lists the caller's outstanding invitations
func (h *InvitationHandler) Mine(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())

	emails, err := h.svc.ListInvitedEmails(r.Context(), claims.UserID)
	if err != nil {
		h.responder.writeError(w, r, err)
		return
	}
	count, err := h.svc.CountInvites(r.Context(), claims.UserID)
	if err != nil {
		h.responder.writeError(w, r, err)
		return
	}
	h.responder.writeJSON(w, http.StatusOK, myInvitationsResponse{Count: count, Invitations: emails})
}

func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.svc.ListAllInvites(r.Context())
	if err != nil {
		h.responder.writeError(w, r, err)
		return
	}
	h.responder.writeJSON(w, http.StatusOK, all)
}

func (h *InvitationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InvitedBy == "" || req.Email == "" {
		h.responder.writeKey(w, r, http.StatusBadRequest, keyInvalidData)
		return
	}

	if err := h.svc.DeleteInvitation(r.Context(), req.InvitedBy, req.Email); err != nil {
		h.responder.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InvitationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	query := domain.VerifyQuery{Token: r.URL.Query().Get("token")}
	if err := h.svc.VerifyInvitation(r.Context(), query); err != nil {
		h.responder.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompleteRegistration consumes the invitation a new account registered with
func (h *InvitationHandler) CompleteRegistration(w http.ResponseWriter, r *http.Request) {
	var req completeRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UID <= 0 {
		h.responder.writeKey(w, r, http.StatusBadRequest, keyInvalidData)
		return
	}

	if err := h.svc.CompleteRegistration(r.Context(), req.UID, req.Token, req.Email); err != nil {
		h.responder.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
