// Package services contains the server-side business flows: issuing
// confirmation tokens, driving the multi-system registration pipeline, and
// verifying logins.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/netsoclabs/memberd/internal/common"
	"github.com/netsoclabs/memberd/internal/dbx"
	"github.com/netsoclabs/memberd/internal/logging"
	"github.com/netsoclabs/memberd/internal/server/config"
	"github.com/netsoclabs/memberd/internal/server/directory"
	"github.com/netsoclabs/memberd/internal/server/homedir"
	"github.com/netsoclabs/memberd/internal/server/models"
	"github.com/netsoclabs/memberd/internal/server/notify"
	"github.com/netsoclabs/memberd/internal/server/repomanager"
	"github.com/netsoclabs/memberd/internal/server/repositories/tokens"
)

// validUsername enforces the handle format: lowercase alphanumeric, at most
// 15 characters. Uppercase is rejected outright rather than folded.
var validUsername = regexp.MustCompile(`^[a-z0-9]{1,15}$`)

// RegisterRequest is the confirmed signup form.
type RegisterRequest struct {
	Email          string
	Token          string
	Username       string
	Name           string
	StudentID      string
	Course         string
	GraduationYear string
}

// Credentials is what a successful registration hands back for the
// credentials email: the shell login password and the database password.
// Neither is ever persisted in plaintext.
type Credentials struct {
	Username   string
	Password   string
	DBPassword string
}

// RegistrationService sequences the provisioning pipeline:
//
//	validate token -> validate form -> create directory account ->
//	insert member row -> issue database credentials -> send credentials ->
//	commit -> invalidate token
//
// The relational transaction stays open across the later steps so any
// failure unwinds it, and the directory entry is deleted as compensation.
// The token is invalidated last: a crash before that point leaves the
// confirmation link usable for a retry, and a retry that finds the
// half-created account simply reports the username as taken.
type RegistrationService struct {
	db       *sql.DB
	rm       repomanager.RepositoryManager
	tokens   tokens.Repository
	registry directory.Registry
	mailer   notify.Mailer
	alerter  notify.Alerter
	homedirs homedir.Initializer
	logger   logging.Logger
	cfg      *config.Config
}

func NewRegistrationService(
	db *sql.DB,
	rm repomanager.RepositoryManager,
	tokenRepo tokens.Repository,
	registry directory.Registry,
	mailer notify.Mailer,
	alerter notify.Alerter,
	homedirs homedir.Initializer,
	logger logging.Logger,
	cfg *config.Config,
) *RegistrationService {
	return &RegistrationService{
		db:       db,
		rm:       rm,
		tokens:   tokenRepo,
		registry: registry,
		mailer:   mailer,
		alerter:  alerter,
		homedirs: homedirs,
		logger:   logger,
		cfg:      cfg,
	}
}

// IssueToken issues a confirmation token for email and mails the signup
// link. Addresses already registered get common.ErrEmailRegistered.
func (s *RegistrationService) IssueToken(ctx context.Context, email string) (string, error) {
	if email == "" || !strings.Contains(email, "@") {
		return "", &ValidationError{Field: "email", Reason: "must be a valid email address"}
	}

	exists, err := s.rm.Members(s.db).ExistsByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("checking for existing account: %w", err)
	}
	if exists {
		return "", common.ErrEmailRegistered
	}

	token, err := s.tokens.Issue(ctx, email)
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}

	if err := s.mailer.Send(ctx, email, "Account Registration", confirmationBody(s.cfg.ServerURL, token, email)); err != nil {
		return "", fmt.Errorf("sending confirmation email: %w", err)
	}
	return token, nil
}

// ValidateToken reports whether the email/token pair is currently live.
func (s *RegistrationService) ValidateToken(ctx context.Context, email, token string) bool {
	return s.tokens.Validate(ctx, email, token)
}

// Register runs the full pipeline for a confirmed signup.
//
// Recoverable outcomes come back as sentinel or typed errors the routing
// layer can translate: common.ErrInvalidToken, *ValidationError, and
// common.ErrUsernameTaken all leave the token usable (except the invalid
// token itself) and nothing provisioned. Infrastructure failures come back
// as *RegistrationError after the compensation cascade has deleted the
// directory entry, rolled back the member row and database role, and
// consumed the token.
func (s *RegistrationService) Register(ctx context.Context, req RegisterRequest) (result *Credentials, err error) {
	cid := uuid.NewString()
	log := s.logger.With("correlation_id", cid, "email", req.Email, "username", req.Username)

	if !s.tokens.Validate(ctx, req.Email, req.Token) {
		log.Debug(ctx, "rejected registration with invalid token")
		return nil, common.ErrInvalidToken
	}

	if verr := validateRequest(req); verr != nil {
		return nil, verr
	}

	taken, err := s.registry.Exists(ctx, req.Username)
	if err != nil {
		log.Error(ctx, "directory availability check failed", "error", err)
		return nil, &RegistrationError{Step: StepDirectory, CorrelationID: cid, Err: err}
	}
	if taken {
		return nil, common.ErrUsernameTaken
	}

	acct, password, err := s.registry.Create(ctx, req.Username)
	if err != nil {
		if errors.Is(err, common.ErrUsernameTaken) {
			// a concurrent registration, or a previous half-finished
			// attempt, owns the handle; the member picks another name
			// with the same link
			return nil, common.ErrUsernameTaken
		}
		log.Error(ctx, "directory account creation failed", "error", err)
		s.invalidateToken(ctx, log, req.Email)
		return nil, &RegistrationError{Step: StepDirectory, CorrelationID: cid, Err: err}
	}

	// From here on a directory entry exists, so every failure path,
	// including a panic below, must delete it again and consume the token.
	defer func() {
		if p := recover(); p != nil {
			log.Error(ctx, "panic during registration", "panic", fmt.Sprint(p))
			s.compensate(ctx, log, req)
			result = nil
			err = &RegistrationError{Step: StepInternal, CorrelationID: cid, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	var dbPassword string

	// The transaction deliberately spans the credential issuance and the
	// credentials email. The deadline bounds how long it can pin a
	// connection if a backend hangs.
	txCtx, cancel := context.WithTimeout(ctx, s.cfg.RegistrationTimeout)
	defer cancel()

	txErr := dbx.WithTx(txCtx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		rec := &models.MemberRecord{
			Username:       req.Username,
			Name:           req.Name,
			Email:          req.Email,
			StudentID:      req.StudentID,
			Course:         req.Course,
			GraduationYear: req.GraduationYear,
			UIDNumber:      acct.UIDNumber,
			GIDNumber:      acct.GIDNumber,
			PasswordHash:   acct.PasswordHash,
		}
		if _, err := s.rm.Members(tx).Create(ctx, rec); err != nil {
			return &RegistrationError{Step: StepRelational, CorrelationID: cid, Err: err}
		}

		pw, err := s.rm.DBAccounts(tx).Create(ctx, req.Username)
		if err != nil {
			return &RegistrationError{Step: StepCredentials, CorrelationID: cid, Err: err}
		}
		dbPassword = pw

		// The account is about to become durable; a bounced credentials
		// email is an operator problem, not a rollback trigger.
		body := detailsBody(req.Username, password, dbPassword)
		if merr := s.mailer.Send(ctx, req.Email, "Account Registration", body); merr != nil {
			log.Error(ctx, "failed to send credentials email", "error", merr)
			s.alert(ctx, log, fmt.Sprintf("credentials email for %s bounced (correlation id %s)", req.Username, cid))
		}
		return nil
	})
	if txErr != nil {
		s.compensate(ctx, log, req)
		regErr := asRegistrationError(txErr, cid)
		log.Error(ctx, "registration rolled back", "step", string(regErr.Step), "error", txErr)
		s.alert(ctx, log, fmt.Sprintf("registration for %s rolled back at %s step (correlation id %s)", req.Username, regErr.Step, cid))
		return nil, regErr
	}

	if herr := s.homedirs.Initialize(ctx, req.Username, password); herr != nil {
		log.Warn(ctx, "home directory initialisation failed", "error", herr)
	}

	if terr := s.tokens.Invalidate(ctx, req.Email); terr != nil {
		// the account is durable; the live token means a retry, which will
		// then read as a taken username
		log.Error(ctx, "failed to invalidate token after commit", "error", terr)
		return nil, &RegistrationError{Step: StepFinalize, CorrelationID: cid, Err: terr}
	}

	log.Info(ctx, "registration complete", "uid_number", acct.UIDNumber)
	return &Credentials{Username: acct.Username, Password: password, DBPassword: dbPassword}, nil
}

func validateRequest(req RegisterRequest) *ValidationError {
	required := []struct {
		field string
		value string
	}{
		{"email", req.Email},
		{"username", req.Username},
		{"name", req.Name},
		{"student_id", req.StudentID},
		{"course", req.Course},
		{"graduation_year", req.GraduationYear},
	}
	for _, f := range required {
		if f.value == "" {
			return &ValidationError{Field: f.field, Reason: "must not be empty"}
		}
	}
	if !validUsername.MatchString(req.Username) {
		return &ValidationError{Field: "username", Reason: "must be lowercase letters and digits, at most 15 characters"}
	}
	return nil
}

// compensate unwinds the directory entry and consumes the token after a
// failure. It never returns an error: rollback problems are logged so they
// cannot mask the original failure. The context is detached from the
// caller's cancellation so a timed-out step still gets cleaned up.
func (s *RegistrationService) compensate(ctx context.Context, log logging.Logger, req RegisterRequest) {
	ctx = context.WithoutCancel(ctx)
	if err := s.registry.Delete(ctx, req.Username); err != nil {
		log.Error(ctx, "rollback: failed to delete directory entry", "error", err)
	}
	s.invalidateToken(ctx, log, req.Email)
}

func (s *RegistrationService) invalidateToken(ctx context.Context, log logging.Logger, email string) {
	if err := s.tokens.Invalidate(context.WithoutCancel(ctx), email); err != nil {
		log.Error(ctx, "failed to invalidate token", "error", err)
	}
}

func (s *RegistrationService) alert(ctx context.Context, log logging.Logger, message string) {
	if err := s.alerter.Alert(context.WithoutCancel(ctx), message); err != nil {
		log.Error(ctx, "failed to post sysadmin alert", "error", err)
	}
}

func asRegistrationError(err error, cid string) *RegistrationError {
	var regErr *RegistrationError
	if errors.As(err, &regErr) {
		return regErr
	}
	return &RegistrationError{Step: StepInternal, CorrelationID: cid, Err: err}
}

func confirmationBody(serverURL, token, email string) string {
	return fmt.Sprintf(`Hello,

Please confirm your account by going to:

%s/signup?t=%s&e=%s

Yours,

The SysAdmin Team
`, serverURL, token, email)
}

func detailsBody(username, password, dbPassword string) string {
	return fmt.Sprintf(`Hello,

Thank you for registering! Your server log-in details are as follows:

username: %s
password: %s

We also provide a database account free of charge, accessible with any SQL
client using:

username: %s
password: %s

Please change your password when you first log in to something you'll remember!

Yours,

The SysAdmin Team
`, username, password, username, dbPassword)
}
