// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkeyshare.
//
// go-passkeyshare is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package webauthn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/jeremyhahn/go-passkeyshare/pkg/adapters/logger"
	"github.com/jeremyhahn/go-passkeyshare/pkg/claimable"
	"github.com/jeremyhahn/go-passkeyshare/pkg/httperr"
	"github.com/jeremyhahn/go-passkeyshare/pkg/identity"
	"github.com/jeremyhahn/go-passkeyshare/pkg/metrics"
	"github.com/jeremyhahn/go-passkeyshare/pkg/session"
)

// Sign-in failure reasons recorded in metrics and logs.
const (
	reasonUnknownUser       = "unknown_user"
	reasonUnknownCredential = "unknown_credential"
	reasonOwnerMismatch     = "owner_mismatch"
	reasonVerification      = "verification"
	reasonMalformed         = "malformed_response"
)

// Service runs the registration and authentication ceremonies against the
// state carried in a browser session.
type Service struct {
	provider   Provider
	parser     Parser
	config     *Config
	identities Identities
	claims     Claimer
	log        logger.Logger
	now        func() time.Time
}

// ServiceParams contains dependencies for creating a ceremony service.
type ServiceParams struct {
	// Config is the relying party configuration (required).
	Config *Config

	// Identities reads and writes users and credentials (required).
	Identities Identities

	// Claims claims the invite or share a new account registers under (required).
	Claims Claimer

	// Provider overrides the go-webauthn instance built from Config.
	Provider Provider

	// Parser overrides the protocol response parser.
	Parser Parser

	// Logger defaults to a no-op logger.
	Logger logger.Logger

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// NewService creates a new ceremony service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, NewError("new service", fmt.Errorf("%w: config is required", ErrNotConfigured))
	}
	if params.Identities == nil {
		return nil, NewError("new service", fmt.Errorf("%w: identities are required", ErrNotConfigured))
	}
	if params.Claims == nil {
		return nil, NewError("new service", fmt.Errorf("%w: claimer is required", ErrNotConfigured))
	}

	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	provider := params.Provider
	if provider == nil {
		wa, err := webauthn.New(params.Config.ToWebAuthnConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
		}
		provider = wa
	}

	parser := params.Parser
	if parser == nil {
		parser = protocolParser{}
	}

	log := params.Logger
	if log == nil {
		log = logger.NoOp{}
	}

	now := params.Clock
	if now == nil {
		now = time.Now
	}

	return &Service{
		provider:   provider,
		parser:     parser,
		config:     params.Config,
		identities: params.Identities,
		claims:     params.Claims,
		log:        log.With(logger.String("component", "webauthn")),
		now:        now,
	}, nil
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}

// RegistrationRequest names the account a visitor wants to create. It is
// ignored for a signed-in visitor adding another passkey.
type RegistrationRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// AllowedCredential is an allowCredentials entry keyed by the stored
// credential id string.
type AllowedCredential struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Transports []string `json:"transports,omitempty"`
}

// AuthenticationOptions is the request challenge sent to the browser.
// AllowCredentials is always present, empty for a discoverable sign-in.
type AuthenticationOptions struct {
	Challenge        protocol.URLEncodedBase64            `json:"challenge"`
	Timeout          int                                  `json:"timeout,omitempty"`
	RPID             string                               `json:"rpId,omitempty"`
	AllowCredentials []AllowedCredential                  `json:"allowCredentials"`
	UserVerification protocol.UserVerificationRequirement `json:"userVerification"`
}

// Result is the outcome of a completed result step.
type Result struct {
	ReturnTo   string                            `json:"return_to"`
	User       *identity.User                    `json:"-"`
	Credential *identity.RegisteredAuthenticator `json:"-"`
	NewAccount bool                              `json:"-"`
}

// RegistrationOptions starts a registration. A signed-in visitor adds a
// passkey to their account; anyone else needs an accepted invite or share
// and gets a provisional account that is only stored once the passkey
// verifies.
func (s *Service) RegistrationOptions(ctx context.Context, st *session.State, req RegistrationRequest) (*protocol.PublicKeyCredentialCreationOptions, error) {
	if auth, ok := st.Authenticated(); ok {
		return s.addPasskeyOptions(ctx, st, auth)
	}

	if _, err := s.currentSource(ctx, st); err != nil {
		return nil, err
	}

	user, err := identity.NewUser(req.Username, req.DisplayName)
	if err != nil {
		return nil, httperr.Wrap(http.StatusBadRequest, userMessage(err), err)
	}

	switch _, err := s.identities.GetUserByUsername(ctx, user.Username); {
	case err == nil:
		return nil, httperr.BadRequest(MsgUsernameTaken)
	case !errors.Is(err, identity.ErrUserNotFound):
		return nil, WrapError("lookup username", err)
	}

	creation, challenge, err := s.provider.BeginRegistration(
		identity.NewWebAuthnUser(user, nil),
		webauthn.WithExclusions([]protocol.CredentialDescriptor{}),
	)
	if err != nil {
		return nil, WrapError("begin registration", err)
	}

	if err := st.BeginRegistering(user, *challenge); err != nil {
		return nil, WrapError("begin registration", err)
	}

	s.log.InfoContext(ctx, "registration started", logger.String("username", user.Username))
	return &creation.Response, nil
}

func (s *Service) addPasskeyOptions(ctx context.Context, st *session.State, auth session.Authenticated) (*protocol.PublicKeyCredentialCreationOptions, error) {
	user, err := s.identities.GetUser(ctx, auth.UserID())
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, httperr.Wrap(http.StatusBadRequest, MsgAccountUnavailable, err)
		}
		return nil, WrapError("get user", err)
	}

	creds, err := s.identities.ListAuthenticators(ctx, user.ID)
	if err != nil {
		return nil, WrapError("list credentials", err)
	}
	if len(creds) == 0 {
		return nil, httperr.Internal(NewError("add passkey", fmt.Errorf("%w: user %s", ErrNoCredentials, user.ID)))
	}

	exclusions := make([]protocol.CredentialDescriptor, 0, len(creds))
	for _, c := range creds {
		desc, err := c.Descriptor()
		if err != nil {
			s.log.WarnContext(ctx, "skipping undecodable credential",
				logger.String("user_id", user.ID),
				logger.String("credential_id", c.CredentialID),
				logger.Error(err))
			continue
		}
		exclusions = append(exclusions, desc)
	}

	creation, challenge, err := s.provider.BeginRegistration(
		identity.NewWebAuthnUser(user, creds),
		webauthn.WithExclusions(exclusions),
	)
	if err != nil {
		return nil, WrapError("begin registration", err)
	}

	if err := st.SetPendingRegistration(*challenge); err != nil {
		return nil, WrapError("begin registration", err)
	}
	return &creation.Response, nil
}

// RegistrationResult verifies the attestation posted by the browser and
// stores the new credential. For a new account the user is persisted, the
// invite or share is claimed and the session is signed in.
func (s *Service) RegistrationResult(ctx context.Context, st *session.State, body []byte) (*Result, error) {
	if _, err := decodeCredential(body); err != nil {
		return nil, err
	}

	start := s.now()
	res, err := s.registrationResult(ctx, st, body)
	metrics.RecordCeremony(metrics.CeremonyRegistration, err == nil, s.now().Sub(start).Seconds())
	return res, err
}

func (s *Service) registrationResult(ctx context.Context, st *session.State, body []byte) (*Result, error) {
	if auth, ok := st.Authenticated(); ok {
		return s.addPasskeyResult(ctx, st, auth, body)
	}

	reg, ok := st.TakeRegistering()
	if !ok {
		return nil, httperr.BadRequest(MsgNoRegistration)
	}

	cred, err := s.verifyAttestation(ctx, identity.NewWebAuthnUser(reg.User, nil), reg.Challenge, body)
	if err != nil {
		return nil, err
	}

	src, err := s.currentSource(ctx, st)
	if err != nil {
		return nil, err
	}

	user := *reg.User
	user.IsAdmin = src.IsAdmin

	registered, err := s.identities.AddUser(ctx, &user, identity.NewAuthenticator(cred, s.now()))
	switch {
	case errors.Is(err, identity.ErrUserAlreadyExists):
		return nil, httperr.Wrap(http.StatusBadRequest, MsgUsernameTaken, err)
	case errors.Is(err, identity.ErrCredentialAlreadyExists):
		return nil, httperr.Wrap(http.StatusBadRequest, MsgPasskeyRegistered, err)
	case err != nil:
		return nil, WrapError("add user", err)
	}

	st.TakeRegisterable()
	if _, err := s.claims.Claim(ctx, src.Kind, src.ID, &user); err != nil {
		s.log.ErrorContext(ctx, "claim after registration failed",
			logger.String("user_id", user.ID),
			logger.String("kind", string(src.Kind)),
			logger.String("id", src.ID),
			logger.Error(err))
		if rbErr := s.identities.DeleteUser(ctx, user.ID); rbErr != nil {
			s.log.ErrorContext(ctx, "rollback of unclaimed account failed",
				logger.String("user_id", user.ID),
				logger.Error(rbErr))
		}
		if claimable.IsAlreadyClaimed(err) {
			return nil, httperr.Wrap(http.StatusForbidden, MsgRegistrationDenied, err)
		}
		return nil, err
	}

	returnTo := st.SignIn(*registered, s.now())
	s.log.InfoContext(ctx, "account registered",
		logger.String("user_id", user.ID),
		logger.String("username", user.Username),
		logger.Bool("admin", user.IsAdmin),
		logger.String("credential_id", registered.CredentialID))

	return &Result{ReturnTo: returnTo, User: &user, Credential: registered, NewAccount: true}, nil
}

// currentSource reloads the invite or share the session accepted. One that
// has been claimed or has expired since is dropped from the session.
func (s *Service) currentSource(ctx context.Context, st *session.State) (*claimable.Source, error) {
	accepted, ok := st.Registerable()
	if !ok {
		return nil, httperr.Forbidden(MsgRegistrationDenied)
	}

	src, err := s.claims.Get(ctx, accepted.Kind, accepted.ID)
	switch {
	case err != nil && !claimable.IsNotFound(err):
		return nil, WrapError("reload "+claimable.Noun(accepted.Kind), err)
	case err == nil && !src.IsClaimed() && !src.Expired(s.now()):
		return src, nil
	}

	st.TakeRegisterable()
	s.log.WarnContext(ctx, "accepted source no longer registerable",
		logger.String("kind", string(accepted.Kind)),
		logger.String("id", accepted.ID))
	return nil, httperr.Forbidden(MsgRegistrationDenied)
}

func (s *Service) addPasskeyResult(ctx context.Context, st *session.State, auth session.Authenticated, body []byte) (*Result, error) {
	challenge, ok := st.TakePendingRegistration()
	if !ok {
		return nil, httperr.BadRequest(MsgNoRegistration)
	}

	user, err := s.identities.GetUser(ctx, auth.UserID())
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, httperr.Internal(NewError("add passkey", err))
		}
		return nil, WrapError("get user", err)
	}
	creds, err := s.identities.ListAuthenticators(ctx, user.ID)
	if err != nil {
		return nil, WrapError("list credentials", err)
	}

	cred, err := s.verifyAttestation(ctx, identity.NewWebAuthnUser(user, creds), challenge, body)
	if err != nil {
		return nil, err
	}

	registered, err := s.identities.AddAuthenticator(ctx, user.ID, identity.NewAuthenticator(cred, s.now()))
	switch {
	case errors.Is(err, identity.ErrCredentialAlreadyExists):
		return nil, httperr.Wrap(http.StatusBadRequest, MsgPasskeyRegistered, err)
	case errors.Is(err, identity.ErrUserNotFound):
		return nil, httperr.Internal(NewError("add passkey", err))
	case err != nil:
		return nil, WrapError("add authenticator", err)
	}

	s.log.InfoContext(ctx, "passkey added",
		logger.String("user_id", user.ID),
		logger.String("credential_id", registered.CredentialID))

	return &Result{ReturnTo: session.DefaultReturnTo, User: user, Credential: registered}, nil
}

func (s *Service) verifyAttestation(ctx context.Context, user *identity.WebAuthnUser, challenge webauthn.SessionData, body []byte) (*webauthn.Credential, error) {
	parsed, err := s.parser.ParseCredentialCreationResponseBytes(body)
	if err != nil {
		s.log.WarnContext(ctx, "malformed attestation response",
			logger.String("username", user.WebAuthnName()), logger.Error(err))
		return nil, httperr.Wrap(http.StatusBadRequest, MsgVerifyFailed, NewError("parse attestation", err))
	}

	cred, err := s.provider.CreateCredential(user, challenge, parsed)
	if err != nil {
		s.log.WarnContext(ctx, "attestation verification failed",
			logger.String("username", user.WebAuthnName()), logger.Error(err))
		return nil, httperr.Wrap(http.StatusBadRequest, MsgVerifyFailed, NewError("create credential", fmt.Errorf("%w: %v", ErrVerificationFailed, err)))
	}
	return cred, nil
}

// AuthenticationOptions starts a sign-in. A named user restricts the
// allowed credentials to theirs; without one the browser offers any
// discoverable passkey.
func (s *Service) AuthenticationOptions(ctx context.Context, st *session.State, username, userVerification string) (*AuthenticationOptions, error) {
	if st.IsAuthenticated() {
		return nil, httperr.BadRequest(MsgAlreadySignedIn)
	}

	uv, err := ParseUserVerification(userVerification)
	if err != nil {
		return nil, httperr.Wrap(http.StatusBadRequest, MsgInvalidVerification, err)
	}

	var user *identity.User
	allowed := make([]AllowedCredential, 0)

	if username = strings.TrimSpace(username); username != "" {
		user, err = s.identities.GetUserByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, identity.ErrUserNotFound) {
				s.log.WarnContext(ctx, "sign-in options for unknown user",
					logger.String("username", username))
				metrics.RecordSignInFailure(reasonUnknownUser)
				return nil, signInFailed(NewError("lookup user", err))
			}
			return nil, WrapError("lookup user", err)
		}

		creds, err := s.identities.ListAuthenticators(ctx, user.ID)
		if err != nil {
			return nil, WrapError("list credentials", err)
		}
		if len(creds) == 0 {
			return nil, httperr.Internal(NewError("sign-in options", fmt.Errorf("%w: user %s", ErrNoCredentials, user.ID)))
		}
		for _, c := range creds {
			allowed = append(allowed, AllowedCredential{
				ID:         c.CredentialID,
				Type:       string(protocol.PublicKeyCredentialType),
				Transports: c.Transports,
			})
		}
	}

	assertion, challenge, err := s.provider.BeginDiscoverableLogin(webauthn.WithUserVerification(uv))
	if err != nil {
		return nil, WrapError("begin login", err)
	}

	if err := st.BeginAuthenticating(session.Authenticating{
		User:             user,
		UserVerification: uv,
		Challenge:        *challenge,
	}); err != nil {
		return nil, WrapError("begin login", err)
	}

	return &AuthenticationOptions{
		Challenge:        assertion.Response.Challenge,
		Timeout:          assertion.Response.Timeout,
		RPID:             assertion.Response.RelyingPartyID,
		AllowCredentials: allowed,
		UserVerification: uv,
	}, nil
}

// AuthenticationResult verifies the assertion posted by the browser and
// signs the session in. Every way the assertion can be rejected yields the
// same error so that callers learn nothing about which accounts exist.
func (s *Service) AuthenticationResult(ctx context.Context, st *session.State, body []byte) (*Result, error) {
	envelope, err := decodeCredential(body)
	if err != nil {
		return nil, err
	}

	start := s.now()
	res, err := s.authenticationResult(ctx, st, envelope.ID, body)
	metrics.RecordCeremony(metrics.CeremonyAuthentication, err == nil, s.now().Sub(start).Seconds())
	return res, err
}

func (s *Service) authenticationResult(ctx context.Context, st *session.State, credentialID string, body []byte) (*Result, error) {
	pending, ok := st.TakeAuthenticating()
	if !ok {
		return nil, httperr.BadRequest(MsgNoAuthentication)
	}

	cred, err := s.identities.GetAuthenticator(ctx, credentialID)
	if err != nil {
		if errors.Is(err, identity.ErrCredentialNotFound) {
			s.log.WarnContext(ctx, "sign-in with unknown credential",
				logger.String("credential_id", credentialID))
			metrics.RecordSignInFailure(reasonUnknownCredential)
			return nil, signInFailed(NewError("get credential", ErrUnknownCredential))
		}
		return nil, WrapError("get credential", err)
	}

	if pending.User != nil && pending.User.ID != cred.UserID {
		s.log.WarnContext(ctx, "sign-in credential belongs to another user",
			logger.String("expected_user_id", pending.User.ID),
			logger.String("owner_user_id", cred.UserID),
			logger.String("credential_id", credentialID))
		metrics.RecordSignInFailure(reasonOwnerMismatch)
		return nil, signInFailed(NewError("authenticate", ErrOwnerMismatch))
	}

	owner, err := s.identities.GetUser(ctx, cred.UserID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, httperr.Internal(NewError("authenticate", fmt.Errorf("credential %s has no owner: %w", credentialID, err)))
		}
		return nil, WrapError("get user", err)
	}

	creds, err := s.identities.ListAuthenticators(ctx, owner.ID)
	if err != nil {
		return nil, WrapError("list credentials", err)
	}

	parsed, err := s.parser.ParseCredentialRequestResponseBytes(body)
	if err != nil {
		s.log.WarnContext(ctx, "malformed assertion response",
			logger.String("user_id", owner.ID),
			logger.String("credential_id", credentialID),
			logger.Error(err))
		metrics.RecordSignInFailure(reasonMalformed)
		return nil, signInFailed(NewError("parse assertion", err))
	}
	if parsed.ID != "" && parsed.ID != credentialID {
		s.log.WarnContext(ctx, "assertion id does not match posted id",
			logger.String("user_id", owner.ID),
			logger.String("credential_id", credentialID))
		metrics.RecordSignInFailure(reasonMalformed)
		return nil, signInFailed(NewError("parse assertion", ErrInvalidRequest))
	}

	challenge := pending.Challenge
	challenge.UserID = []byte(owner.ID)

	verified, err := s.provider.ValidateLogin(identity.NewWebAuthnUser(owner, creds), challenge, parsed)
	if err != nil {
		s.log.WarnContext(ctx, "assertion verification failed",
			logger.String("user_id", owner.ID),
			logger.String("credential_id", credentialID),
			logger.Error(err))
		metrics.RecordSignInFailure(reasonVerification)
		return nil, signInFailed(NewError("validate login", fmt.Errorf("%w: %v", ErrVerificationFailed, err)))
	}

	if verified.Authenticator.CloneWarning {
		s.log.WarnContext(ctx, "signature counter did not advance",
			logger.String("user_id", owner.ID),
			logger.String("credential_id", credentialID))
	}
	if err := s.identities.UpdateCounter(ctx, cred.CredentialID, verified.Authenticator.SignCount); err != nil {
		s.log.ErrorContext(ctx, "failed to update signature counter",
			logger.String("credential_id", credentialID), logger.Error(err))
	} else {
		cred.Counter = verified.Authenticator.SignCount
	}

	returnTo := st.SignIn(*cred, s.now())
	s.log.InfoContext(ctx, "signed in",
		logger.String("user_id", owner.ID),
		logger.String("credential_id", credentialID))

	return &Result{ReturnTo: returnTo, User: owner, Credential: cred}, nil
}

type credentialEnvelope struct {
	ID       string          `json:"id"`
	Response json.RawMessage `json:"response"`
}

// decodeCredential checks the fields every posted credential must carry.
func decodeCredential(body []byte) (*credentialEnvelope, error) {
	var env credentialEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, httperr.Wrap(http.StatusBadRequest, MsgMalformedCredentials, NewError("decode credential", fmt.Errorf("%w: %v", ErrInvalidRequest, err)))
	}
	env.ID = strings.TrimSpace(env.ID)
	if env.ID == "" {
		return nil, httperr.BadRequest(MsgMissingCredentialID)
	}
	if resp := bytes.TrimSpace(env.Response); len(resp) == 0 || bytes.Equal(resp, []byte("null")) {
		return nil, httperr.BadRequest(MsgMissingResponse)
	}
	return &env, nil
}

func signInFailed(err error) *httperr.Error {
	return httperr.Wrap(http.StatusBadRequest, MsgSignInFailed, err)
}

// userMessage turns an identity validation error into a sentence.
func userMessage(err error) string {
	switch {
	case errors.Is(err, identity.ErrInvalidUsername):
		return "Usernames must be 1 to 32 letters, digits, dots, dashes or underscores"
	case errors.Is(err, identity.ErrInvalidDisplayName):
		return "Display names must be 1 to 64 printable characters"
	}
	return "Invalid registration request"
}
