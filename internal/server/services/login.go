package services

import (
	"context"
	"errors"

	"github.com/netsoclabs/memberd/internal/common"
	"github.com/netsoclabs/memberd/internal/logging"
	"github.com/netsoclabs/memberd/internal/server/auth"
	"github.com/netsoclabs/memberd/internal/server/config"
	"github.com/netsoclabs/memberd/internal/server/creds"
	"github.com/netsoclabs/memberd/internal/server/directory"
)

// dummyHash is a well-formed SHA-512-crypt hash of a value no caller will
// present. Verifying an unknown username's password against it costs the
// same full crypt run as a real comparison, so a directory miss cannot be
// told apart from a wrong password by timing.
const dummyHash = creds.SchemeTag + "$6$saltstring$svn8UoSVapNtMuq1ukKS4tPQd8iKwSMHWjl/O817G3uBnIFNjnQJuesI68u4OTLiBFdcbYEdFCoEOfaS35inz1"

// LoginService verifies member passwords against the directory and issues
// session tokens.
type LoginService struct {
	registry directory.Registry
	issuer   creds.Issuer
	logger   logging.Logger
	cfg      *config.Config
}

func NewLoginService(registry directory.Registry, issuer creds.Issuer, logger logging.Logger, cfg *config.Config) *LoginService {
	return &LoginService{registry: registry, issuer: issuer, logger: logger, cfg: cfg}
}

// VerifyLogin checks a username/password pair. An unknown username and a
// wrong password are indistinguishable to the caller: both come back as
// plain false. Only infrastructure failures surface as errors.
func (s *LoginService) VerifyLogin(ctx context.Context, username, password string) (bool, error) {
	acct, err := s.registry.GetAccount(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// burn a full comparison anyway so the miss costs the same
			s.issuer.Verify(password, dummyHash)
			return false, nil
		}
		return false, err
	}
	return s.issuer.Verify(password, acct.PasswordHash), nil
}

// Login verifies the pair and, on success, returns a signed session token.
// Failed verification comes back as common.ErrorUnauthorized regardless of
// whether the username exists.
func (s *LoginService) Login(ctx context.Context, username, password string) (string, error) {
	ok, err := s.VerifyLogin(ctx, username, password)
	if err != nil {
		s.logger.Error(ctx, "login verification failed", "username", username, "error", err)
		return "", common.ErrorInternal
	}
	if !ok {
		s.logger.Debug(ctx, "rejected login", "username", username)
		return "", common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(username, []byte(s.cfg.SecretKey), s.cfg.SessionTokenValidity)
	if err != nil {
		s.logger.Error(ctx, "failed to sign session token", "username", username, "error", err)
		return "", common.ErrorInternal
	}
	return token, nil
}

// IsAdmin reports whether the account carries the admin group.
func (s *LoginService) IsAdmin(ctx context.Context, username string) (bool, error) {
	acct, err := s.registry.GetAccount(ctx, username)
	if err != nil {
		return false, err
	}
	return acct.GIDNumber == s.cfg.AdminGID, nil
}

// Introspect resolves a session token back to its holder. A token that does
// not verify, or whose holder no longer exists in the directory, comes back
// as common.ErrorUnauthorized.
func (s *LoginService) Introspect(ctx context.Context, token string) (string, bool, error) {
	username, err := auth.GetUsernameFromToken(token, []byte(s.cfg.SecretKey))
	if err != nil {
		return "", false, common.ErrorUnauthorized
	}

	admin, err := s.IsAdmin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", false, common.ErrorUnauthorized
		}
		s.logger.Error(ctx, "session introspection failed", "username", username, "error", err)
		return "", false, common.ErrorInternal
	}
	return username, admin, nil
}
