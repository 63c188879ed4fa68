// Package httpapi exposes the registration and login flows as a small JSON
// API. Handlers decode, delegate, and encode; the services own all business
// rules. Backend failure detail never reaches a response body, only the
// correlation id does.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/netsoclabs/memberd/internal/common"
	"github.com/netsoclabs/memberd/internal/logging"
	"github.com/netsoclabs/memberd/internal/server/services"
)

// Registrar is the slice of the registration service the API consumes.
type Registrar interface {
	IssueToken(ctx context.Context, email string) (string, error)
	ValidateToken(ctx context.Context, email, token string) bool
	Register(ctx context.Context, req services.RegisterRequest) (*services.Credentials, error)
}

// Authenticator is the slice of the login service the API consumes.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	Introspect(ctx context.Context, token string) (username string, admin bool, err error)
}

type Handler struct {
	registrar Registrar
	auth      Authenticator
	logger    logging.Logger
}

func NewHandler(registrar Registrar, auth Authenticator, logger logging.Logger) *Handler {
	return &Handler{registrar: registrar, auth: auth, logger: logger}
}

// Router wires the endpoints.
func (h *Handler) Router() *httprouter.Router {
	router := httprouter.New()
	router.HandlerFunc(http.MethodPost, "/v1/tokens", h.issueToken)
	router.HandlerFunc(http.MethodPost, "/v1/tokens/validate", h.validateToken)
	router.HandlerFunc(http.MethodPost, "/v1/members", h.register)
	router.HandlerFunc(http.MethodPost, "/v1/sessions", h.login)
	router.HandlerFunc(http.MethodGet, "/v1/sessions/me", h.whoami)
	return router
}

type issueTokenRequest struct {
	Email string `json:"email"`
}

type validateTokenRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

type validateTokenResponse struct {
	Valid bool `json:"valid"`
}

type registerRequest struct {
	Email          string `json:"email"`
	Token          string `json:"token"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	StudentID      string `json:"student_id"`
	Course         string `json:"course"`
	GraduationYear string `json:"graduation_year"`
}

type registerResponse struct {
	Username string `json:"username"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type sessionResponse struct {
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	var req issueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.registrar.IssueToken(r.Context(), req.Email); err != nil {
		h.encodeError(r.Context(), w, err)
		return
	}
	// the token travels by email only
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) validateToken(w http.ResponseWriter, r *http.Request) {
	var req validateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	valid := h.registrar.ValidateToken(r.Context(), req.Email, req.Token)
	writeJSON(w, http.StatusOK, &validateTokenResponse{Valid: valid})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	creds, err := h.registrar.Register(r.Context(), services.RegisterRequest{
		Email:          req.Email,
		Token:          req.Token,
		Username:       req.Username,
		Name:           req.Name,
		StudentID:      req.StudentID,
		Course:         req.Course,
		GraduationYear: req.GraduationYear,
	})
	if err != nil {
		h.encodeError(r.Context(), w, err)
		return
	}
	// credentials go out by email, the response only confirms the handle
	writeJSON(w, http.StatusCreated, &registerResponse{Username: creds.Username})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.encodeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, &loginResponse{Token: token})
}

func (h *Handler) whoami(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	username, admin, err := h.auth.Introspect(r.Context(), token)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			writeError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		h.encodeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, &sessionResponse{Username: username, Admin: admin})
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

func (h *Handler) encodeError(ctx context.Context, w http.ResponseWriter, err error) {
	var verr *services.ValidationError
	var regErr *services.RegistrationError

	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, verr.Error())
	case errors.Is(err, common.ErrInvalidToken):
		writeError(w, http.StatusForbidden, "invalid or expired token")
	case errors.Is(err, common.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "username is already taken")
	case errors.Is(err, common.ErrEmailRegistered):
		writeError(w, http.StatusConflict, "email address is already registered")
	case errors.Is(err, common.ErrorUnauthorized):
		writeError(w, http.StatusUnauthorized, "invalid username or password")
	case errors.As(err, &regErr):
		writeError(w, http.StatusInternalServerError,
			"registration failed, contact support quoting id "+regErr.CorrelationID)
	default:
		h.logger.Error(ctx, "unhandled error in http layer", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
