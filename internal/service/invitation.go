package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"forum-invitations/internal/domain"
	"forum-invitations/internal/logger"
	"forum-invitations/internal/metrics"
	"forum-invitations/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	invitationTemplate = "invitation"
	defaultSiteTitle   = "NodeBB"
	dayMillis          = 86_400_000
)

// InvitationSettings is the site configuration issuance and verification read
type InvitationSettings struct {
	BaseURL          string
	ExpirationDays   int
	RegistrationType domain.RegistrationType
	DefaultLang      string
	Title            string
	BrowserTitle     string
}

// siteTitle resolves title, then browser title, then the product name
func (s InvitationSettings) siteTitle() string {
	if s.Title != "" {
		return s.Title
	}
	if s.BrowserTitle != "" {
		return s.BrowserTitle
	}
	return defaultSiteTitle
}

type invitationService struct {
	store      repository.KVStore
	users      repository.UserRepository
	groups     repository.GroupRepository
	emailSvc   EmailService
	translator Translator
	events     EventPublisher
	settings   InvitationSettings
	tracer     trace.Tracer
	now        func() time.Time
	newToken   func() string
}

func NewInvitationService(
	store repository.KVStore,
	users repository.UserRepository,
	groups repository.GroupRepository,
	emailSvc EmailService,
	translator Translator,
	events EventPublisher,
	settings InvitationSettings,
) InvitationService {
	return &invitationService{
		store:      store,
		users:      users,
		groups:     groups,
		emailSvc:   emailSvc,
		translator: translator,
		events:     events,
		settings:   settings,
		tracer:     otel.Tracer("forum-invitations/internal/service"),
		now:        time.Now,
		newToken:   uuid.NewString,
	}
}

func (s *invitationService) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "InvitationService."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// storeStep runs one KV write, logging it and wrapping any failure
func storeStep(ctx context.Context, operation, key string, fn func(context.Context) error) error {
	logger.StoreCall(operation, key)
	err := fn(ctx)
	logger.StoreResult(operation, key, err)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", operation, key, err)
	}
	return nil
}

func (s *invitationService) ListInvitedEmails(ctx context.Context, uid int32) ([]string, error) {
	members, err := s.store.GetSetMembers(ctx, inviteeSetKey(uid))
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations of %d: %w", uid, err)
	}
	emails := make([]string, 0, len(members))
	for _, m := range members {
		emails = append(emails, escapeEmail(m))
	}
	return emails, nil
}

func (s *invitationService) CountInvites(ctx context.Context, uid int32) (int, error) {
	n, err := s.store.SetCount(ctx, inviteeSetKey(uid))
	if err != nil {
		return 0, fmt.Errorf("failed to count invitations of %d: %w", uid, err)
	}
	return n, nil
}

func (s *invitationService) ListInvitingUsers(ctx context.Context) ([]int32, error) {
	members, err := s.store.GetSetMembers(ctx, invitingUsersKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list inviting users: %w", err)
	}
	uids := make([]int32, 0, len(members))
	for _, m := range members {
		uid, err := parseUID(m)
		if err != nil {
			logger.WarnContext(ctx, "Skipping malformed inviter id", "member", m, "error", err)
			continue
		}
		uids = append(uids, uid)
	}
	return uids, nil
}

func (s *invitationService) ListAllInvites(ctx context.Context) (result []domain.InviterInvites, err error) {
	ctx, span := s.startSpan(ctx, "ListAllInvites")
	defer func() { endSpan(span, err) }()

	uids, err := s.ListInvitingUsers(ctx)
	if err != nil {
		return nil, err
	}

	result = make([]domain.InviterInvites, len(uids))
	g, gctx := errgroup.WithContext(ctx)
	for i, uid := range uids {
		i, uid := i, uid
		g.Go(func() error {
			emails, err := s.ListInvitedEmails(gctx, uid)
			if err != nil {
				return err
			}
			result[i] = domain.InviterInvites{UID: uid, Invitations: emails}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *invitationService) CreateAndSendInvitation(ctx context.Context, uid int32, email string, groupsToJoin []string) (err error) {
	const method = "InvitationService.CreateAndSendInvitation"
	logger.EnterMethod(method, "uid", uid, "groups", len(groupsToJoin))
	ctx, span := s.startSpan(ctx, "CreateAndSendInvitation", attribute.Int("uid", int(uid)))
	defer func() {
		endSpan(span, err)
		if err != nil {
			logger.ExitMethodWithError(method, err, "uid", uid)
			switch {
			case errors.Is(err, ErrDuplicateInvitation):
				metrics.InvitationIssued(metrics.ResultDuplicate)
			default:
				metrics.InvitationIssued(metrics.ResultFailed)
			}
			return
		}
		logger.ExitMethod(method, "uid", uid)
	}()

	exists, err := s.users.Exists(ctx, uid)
	if err != nil {
		return fmt.Errorf("failed to look up inviter %d: %w", uid, err)
	}
	if !exists {
		return ErrInvalidInviter
	}

	registered, err := s.users.GetUIDByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to look up invited email: %w", err)
	}
	if registered != 0 {
		logger.DebugContext(ctx, "Invited email already belongs to an account, nothing to send", "uid", uid, "registeredUid", registered)
		metrics.InvitationIssued(metrics.ResultRegistered)
		return nil
	}

	if err := s.checkOutstanding(ctx, uid, email); err != nil {
		return err
	}

	if groupsToJoin == nil {
		groupsToJoin = []string{}
	}
	payload, err := s.prepareInvitation(ctx, uid, email, groupsToJoin)
	if err != nil {
		return err
	}

	logger.ExternalServiceCall("email", "SendToEmail", "template", invitationTemplate)
	err = s.emailSvc.SendToEmail(ctx, invitationTemplate, email, s.emailLanguage(), payload)
	logger.ExternalServiceResult("email", "SendToEmail", err)
	if err != nil {
		return fmt.Errorf("failed to send invitation email: %w", err)
	}

	s.events.Publish(domain.NewInviteEvent(uid, email, groupsToJoin, s.now()))
	metrics.InvitationIssued(metrics.ResultSent)
	return nil
}

// checkOutstanding rejects a second live invitation from uid to email. A
// record whose token has expired is cleared so the email can be re-invited.
func (s *invitationService) checkOutstanding(ctx context.Context, uid int32, email string) error {
	raw, err := s.store.Get(ctx, invitedRecordKey(uid, email))
	if err != nil {
		return fmt.Errorf("failed to read invitation record: %w", err)
	}
	if raw == "" {
		return nil
	}

	token := recordToken(raw)
	if token != "" {
		live, err := s.store.Exists(ctx, tokenKey(token))
		if err != nil {
			return fmt.Errorf("failed to check invitation token: %w", err)
		}
		if live {
			return ErrDuplicateInvitation
		}
	}

	logger.DebugContext(ctx, "Clearing expired invitation before re-issuing", "uid", uid)
	if err := s.deleteFromReferenceList(ctx, uid, email); err != nil {
		return err
	}
	if token != "" {
		if err := storeStep(ctx, "remove token", tokenSetKey(email), func(ctx context.Context) error {
			return s.store.SetRemove(ctx, tokenSetKey(email), token)
		}); err != nil {
			return err
		}
	}
	metrics.InvitationsDeleted(metrics.PathReissue, 1)
	return nil
}

// prepareInvitation persists a new invitation and returns the email payload
func (s *invitationService) prepareInvitation(ctx context.Context, uid int32, email string, groupsToJoin []string) (map[string]any, error) {
	token := s.newToken()
	registerLink := fmt.Sprintf("%s/register?token=%s", s.settings.BaseURL, token)
	expireDays := s.settings.ExpirationDays
	expireAt := time.UnixMilli(s.now().UnixMilli() + int64(expireDays)*dayMillis)

	record, err := json.Marshal(domain.Invitation{
		Email:        email,
		Token:        token,
		GroupsToJoin: groupsToJoin,
		Inviter:      uid,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode invitation: %w", err)
	}
	groups, err := json.Marshal(groupsToJoin)
	if err != nil {
		return nil, fmt.Errorf("failed to encode groups: %w", err)
	}

	steps := []struct {
		operation string
		key       string
		fn        func(context.Context) error
	}{
		{"add invitee", inviteeSetKey(uid), func(ctx context.Context) error {
			return s.store.SetAdd(ctx, inviteeSetKey(uid), email)
		}},
		{"add inviter", invitingUsersKey, func(ctx context.Context) error {
			return s.store.SetAdd(ctx, invitingUsersKey, formatUID(uid))
		}},
		{"write record", invitedRecordKey(uid, email), func(ctx context.Context) error {
			return s.store.Set(ctx, invitedRecordKey(uid, email), string(record))
		}},
		{"add token", tokenSetKey(email), func(ctx context.Context) error {
			return s.store.SetAdd(ctx, tokenSetKey(email), token)
		}},
		{"write token", tokenKey(token), func(ctx context.Context) error {
			return s.store.SetObject(ctx, tokenKey(token), map[string]string{
				"email":        email,
				"token":        token,
				"groupsToJoin": string(groups),
				"inviter":      formatUID(uid),
			})
		}},
		{"expire token", tokenKey(token), func(ctx context.Context) error {
			return s.store.PExpireAt(ctx, tokenKey(token), expireAt)
		}},
	}
	for _, step := range steps {
		if err := storeStep(ctx, step.operation, step.key, step.fn); err != nil {
			return nil, err
		}
	}

	username, err := s.users.GetUserField(ctx, uid, "username")
	if err != nil {
		return nil, fmt.Errorf("failed to read inviter username: %w", err)
	}

	title := s.settings.siteTitle()
	subject := s.translator.Translate("email:invite", s.emailLanguage(), title)

	return map[string]any{
		"url":          s.settings.BaseURL,
		"site_title":   title,
		"registerLink": registerLink,
		"subject":      subject,
		"username":     username,
		"template":     invitationTemplate,
		"expireDays":   expireDays,
	}, nil
}

// emailLanguage is the language of both the subject and the email body
func (s *invitationService) emailLanguage() string {
	if s.settings.DefaultLang != "" {
		return s.settings.DefaultLang
	}
	return "en"
}

func (s *invitationService) VerifyInvitation(ctx context.Context, query domain.VerifyQuery) (err error) {
	ctx, span := s.startSpan(ctx, "VerifyInvitation")
	defer func() { endSpan(span, err) }()

	if query.Token == "" {
		if s.settings.RegistrationType.AdminOnly() {
			return ErrAdminOnly
		}
		return ErrInviteOnly
	}

	stored, err := s.store.GetObjectField(ctx, tokenKey(query.Token), "token")
	if err != nil {
		return fmt.Errorf("failed to read invitation: %w", err)
	}
	if stored == "" || stored != query.Token {
		return ErrInvalidInvitation
	}
	return nil
}

func (s *invitationService) ConfirmEmailIfInvited(ctx context.Context, token, enteredEmail string, uid int32) (err error) {
	ctx, span := s.startSpan(ctx, "ConfirmEmailIfInvited", attribute.Int("uid", int(uid)))
	defer func() { endSpan(span, err) }()

	if enteredEmail == "" {
		return nil
	}
	invited, err := s.store.GetObjectField(ctx, tokenKey(token), "email")
	if err != nil {
		return fmt.Errorf("failed to read invitation: %w", err)
	}
	if invited == "" || invited != enteredEmail {
		logger.Debug("Registration email does not match invitation, leaving unconfirmed", "uid", uid)
		return nil
	}

	if err := s.users.ConfirmEmail(ctx, uid); err != nil {
		return fmt.Errorf("failed to confirm email of %d: %w", uid, err)
	}
	logger.Info("Confirmed invited email", "uid", uid)
	return nil
}

func (s *invitationService) ApplyInvitedGroups(ctx context.Context, uid int32, token string) (err error) {
	ctx, span := s.startSpan(ctx, "ApplyInvitedGroups", attribute.Int("uid", int(uid)))
	defer func() { endSpan(span, err) }()

	raw, err := s.store.GetObjectField(ctx, tokenKey(token), "groupsToJoin")
	if err != nil {
		return fmt.Errorf("failed to read invitation groups: %w", err)
	}
	if raw == "" {
		return nil
	}

	var groups []string
	if err := json.Unmarshal([]byte(raw), &groups); err != nil {
		logger.Warn("Ignoring malformed invitation groups", "uid", uid, "error", err)
		return nil
	}
	if len(groups) == 0 {
		return nil
	}

	if err := s.groups.Join(ctx, groups, uid); err != nil {
		return fmt.Errorf("failed to join invited groups: %w", err)
	}
	logger.Info("Joined invited groups", "uid", uid, "groups", groups)
	return nil
}

func (s *invitationService) CompleteRegistration(ctx context.Context, uid int32, token, email string) (err error) {
	const method = "InvitationService.CompleteRegistration"
	logger.EnterMethod(method, "uid", uid)
	ctx, span := s.startSpan(ctx, "CompleteRegistration", attribute.Int("uid", int(uid)))
	defer func() {
		endSpan(span, err)
		if err != nil {
			logger.ExitMethodWithError(method, err, "uid", uid)
			return
		}
		logger.ExitMethod(method, "uid", uid)
	}()

	if token != "" {
		if err := s.ConfirmEmailIfInvited(ctx, token, email, uid); err != nil {
			return err
		}
		if err := s.ApplyInvitedGroups(ctx, uid, token); err != nil {
			return err
		}
	}
	return s.DeleteInvitationByKey(ctx, email, token)
}

// deleteFromReferenceList drops email from uid's invitee set and its record,
// then drops uid from the inviter index once nothing is left.
func (s *invitationService) deleteFromReferenceList(ctx context.Context, uid int32, email string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return storeStep(gctx, "remove invitee", inviteeSetKey(uid), func(ctx context.Context) error {
			return s.store.SetRemove(ctx, inviteeSetKey(uid), email)
		})
	})
	g.Go(func() error {
		return storeStep(gctx, "delete record", invitedRecordKey(uid, email), func(ctx context.Context) error {
			return s.store.Delete(ctx, invitedRecordKey(uid, email))
		})
	})
	if err := g.Wait(); err != nil {
		return err
	}

	remaining, err := s.store.SetCount(ctx, inviteeSetKey(uid))
	if err != nil {
		return fmt.Errorf("failed to count invitations of %d: %w", uid, err)
	}
	if remaining > 0 {
		return nil
	}
	return storeStep(ctx, "remove inviter", invitingUsersKey, func(ctx context.Context) error {
		return s.store.SetRemove(ctx, invitingUsersKey, formatUID(uid))
	})
}

func (s *invitationService) DeleteInvitation(ctx context.Context, inviterUsername, email string) (err error) {
	const method = "InvitationService.DeleteInvitation"
	logger.EnterMethod(method, "inviter", inviterUsername)
	ctx, span := s.startSpan(ctx, "DeleteInvitation")
	defer func() {
		endSpan(span, err)
		if err != nil {
			logger.ExitMethodWithError(method, err, "inviter", inviterUsername)
			return
		}
		logger.ExitMethod(method, "inviter", inviterUsername)
	}()

	uid, err := s.users.GetUIDByUsername(ctx, inviterUsername)
	if err != nil {
		return fmt.Errorf("failed to look up inviter: %w", err)
	}
	if uid == 0 {
		return ErrInvalidUsername
	}

	raw, err := s.store.Get(ctx, invitedRecordKey(uid, email))
	if err != nil {
		return fmt.Errorf("failed to read invitation record: %w", err)
	}
	token := recordToken(raw)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.deleteFromReferenceList(gctx, uid, email)
	})
	if token != "" {
		g.Go(func() error {
			return storeStep(gctx, "remove token", tokenSetKey(email), func(ctx context.Context) error {
				return s.store.SetRemove(ctx, tokenSetKey(email), token)
			})
		})
		g.Go(func() error {
			return storeStep(gctx, "delete token", tokenKey(token), func(ctx context.Context) error {
				return s.store.Delete(ctx, tokenKey(token))
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	metrics.InvitationsDeleted(metrics.PathExplicit, 1)
	return nil
}

func (s *invitationService) DeleteInvitationByKey(ctx context.Context, registrationEmail, token string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteInvitationByKey")
	defer func() { endSpan(span, err) }()

	g, gctx := errgroup.WithContext(ctx)
	if registrationEmail != "" {
		g.Go(func() error {
			return s.deleteInvitationsOfEmail(gctx, registrationEmail)
		})
	}
	if token != "" {
		g.Go(func() error {
			return s.deleteInvitationToken(gctx, token)
		})
	}
	return g.Wait()
}

// deleteInvitationsOfEmail removes email from every inviter and drops all of
// its tokens
func (s *invitationService) deleteInvitationsOfEmail(ctx context.Context, email string) error {
	uids, err := s.ListInvitingUsers(ctx)
	if err != nil {
		return err
	}
	tokens, err := s.store.GetSetMembers(ctx, tokenSetKey(email))
	if err != nil {
		return fmt.Errorf("failed to list invitation tokens: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, uid := range uids {
		uid := uid
		g.Go(func() error {
			return s.deleteFromReferenceList(gctx, uid, email)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	keys := make([]string, 0, len(tokens)+1)
	keys = append(keys, tokenSetKey(email))
	for _, t := range tokens {
		keys = append(keys, tokenKey(t))
	}
	if err := storeStep(ctx, "delete tokens", tokenSetKey(email), func(ctx context.Context) error {
		return s.store.DeleteAll(ctx, keys)
	}); err != nil {
		return err
	}

	metrics.InvitationsDeleted(metrics.PathRegistration, len(tokens))
	return nil
}

// deleteInvitationToken removes the invitation a token refers to
func (s *invitationService) deleteInvitationToken(ctx context.Context, token string) error {
	invitation, err := s.store.GetObject(ctx, tokenKey(token))
	if err != nil {
		return fmt.Errorf("failed to read invitation: %w", err)
	}
	if invitation == nil {
		return nil
	}
	email := invitation["email"]

	g, gctx := errgroup.WithContext(ctx)
	if uid, err := parseUID(invitation["inviter"]); err == nil {
		g.Go(func() error {
			return s.deleteFromReferenceList(gctx, uid, email)
		})
	} else {
		logger.Warn("Invitation has no valid inviter, skipping reference cleanup", "error", err)
	}
	g.Go(func() error {
		return storeStep(gctx, "delete tokens", tokenKey(token), func(ctx context.Context) error {
			return s.store.DeleteAll(ctx, []string{tokenSetKey(email), tokenKey(token)})
		})
	})
	if err := g.Wait(); err != nil {
		return err
	}

	metrics.InvitationsDeleted(metrics.PathRegistration, 1)
	return nil
}

func (s *invitationService) SweepStaleInvitations(ctx context.Context) (removed int, err error) {
	const method = "InvitationService.SweepStaleInvitations"
	logger.EnterMethod(method)
	ctx, span := s.startSpan(ctx, "SweepStaleInvitations")
	defer func() {
		span.SetAttributes(attribute.Int("removed", removed))
		endSpan(span, err)
		if err != nil {
			logger.ExitMethodWithError(method, err, "removed", removed)
			return
		}
		logger.ExitMethod(method, "removed", removed)
	}()

	uids, err := s.ListInvitingUsers(ctx)
	if err != nil {
		return 0, err
	}

	for _, uid := range uids {
		emails, err := s.store.GetSetMembers(ctx, inviteeSetKey(uid))
		if err != nil {
			return removed, fmt.Errorf("failed to list invitations of %d: %w", uid, err)
		}
		if len(emails) == 0 {
			if err := storeStep(ctx, "remove inviter", invitingUsersKey, func(ctx context.Context) error {
				return s.store.SetRemove(ctx, invitingUsersKey, formatUID(uid))
			}); err != nil {
				return removed, err
			}
			continue
		}

		for _, email := range emails {
			stale, token, err := s.isStale(ctx, uid, email)
			if err != nil {
				return removed, err
			}
			if !stale {
				continue
			}
			if err := s.deleteFromReferenceList(ctx, uid, email); err != nil {
				return removed, err
			}
			if token != "" {
				if err := storeStep(ctx, "remove token", tokenSetKey(email), func(ctx context.Context) error {
					return s.store.SetRemove(ctx, tokenSetKey(email), token)
				}); err != nil {
					return removed, err
				}
			}
			removed++
		}
	}

	metrics.InvitationsDeleted(metrics.PathSweep, removed)
	return removed, nil
}

// isStale reports whether the (uid, email) reference has lost its record or
// its token, returning the token it referred to. A reference without a record
// is kept while the email still holds a live token: issuance adds the
// reference before it writes the record.
func (s *invitationService) isStale(ctx context.Context, uid int32, email string) (bool, string, error) {
	raw, err := s.store.Get(ctx, invitedRecordKey(uid, email))
	if err != nil {
		return false, "", fmt.Errorf("failed to read invitation record: %w", err)
	}
	token := recordToken(raw)
	if token == "" {
		pending, err := s.hasLiveToken(ctx, email)
		if err != nil {
			return false, "", err
		}
		if pending {
			logger.DebugContext(ctx, "Keeping reference without record, email has a live token", "uid", uid)
		}
		return !pending, "", nil
	}
	live, err := s.store.Exists(ctx, tokenKey(token))
	if err != nil {
		return false, "", fmt.Errorf("failed to check invitation token: %w", err)
	}
	return !live, token, nil
}

func (s *invitationService) hasLiveToken(ctx context.Context, email string) (bool, error) {
	tokens, err := s.store.GetSetMembers(ctx, tokenSetKey(email))
	if err != nil {
		return false, fmt.Errorf("failed to list invitation tokens: %w", err)
	}
	for _, t := range tokens {
		live, err := s.store.Exists(ctx, tokenKey(t))
		if err != nil {
			return false, fmt.Errorf("failed to check invitation token: %w", err)
		}
		if live {
			return true, nil
		}
	}
	return false, nil
}
