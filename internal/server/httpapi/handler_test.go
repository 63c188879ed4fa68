package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netsoclabs/memberd/internal/common"
	"github.com/netsoclabs/memberd/internal/logging"
	"github.com/netsoclabs/memberd/internal/server/services"
)

type stubRegistrar struct {
	issueErr    error
	validateOK  bool
	registerErr error
	lastReq     services.RegisterRequest
}

func (s *stubRegistrar) IssueToken(ctx context.Context, email string) (string, error) {
	return "tok", s.issueErr
}

func (s *stubRegistrar) ValidateToken(ctx context.Context, email, token string) bool {
	return s.validateOK
}

func (s *stubRegistrar) Register(ctx context.Context, req services.RegisterRequest) (*services.Credentials, error) {
	s.lastReq = req
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &services.Credentials{Username: req.Username, Password: "pw", DBPassword: "dbpw"}, nil
}

type stubAuthenticator struct {
	token    string
	err      error
	username string
	admin    bool
	seen     string
}

func (s *stubAuthenticator) Login(ctx context.Context, username, password string) (string, error) {
	return s.token, s.err
}

func (s *stubAuthenticator) Introspect(ctx context.Context, token string) (string, bool, error) {
	s.seen = token
	return s.username, s.admin, s.err
}

func newTestHandler(reg *stubRegistrar, auth *stubAuthenticator) http.Handler {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewHandler(reg, auth, logger).Router()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestIssueTokenEndpoint(t *testing.T) {
	t.Run("accepted, token not echoed", func(t *testing.T) {
		h := newTestHandler(&stubRegistrar{}, &stubAuthenticator{})
		w := doJSON(t, h, http.MethodPost, "/v1/tokens", `{"email":"a@b.c"}`)
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.NotContains(t, w.Body.String(), "tok")
	})

	t.Run("registered email conflicts", func(t *testing.T) {
		h := newTestHandler(&stubRegistrar{issueErr: common.ErrEmailRegistered}, &stubAuthenticator{})
		w := doJSON(t, h, http.MethodPost, "/v1/tokens", `{"email":"a@b.c"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("garbage body", func(t *testing.T) {
		h := newTestHandler(&stubRegistrar{}, &stubAuthenticator{})
		w := doJSON(t, h, http.MethodPost, "/v1/tokens", `{`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestValidateTokenEndpoint(t *testing.T) {
	h := newTestHandler(&stubRegistrar{validateOK: true}, &stubAuthenticator{})
	w := doJSON(t, h, http.MethodPost, "/v1/tokens/validate", `{"email":"a@b.c","token":"t"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Valid bool `json:"valid"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
}

func TestRegisterEndpoint(t *testing.T) {
	body := `{"email":"a@b.c","token":"t","username":"alice","name":"Alice","student_id":"1","course":"CS","graduation_year":"2028"}`

	t.Run("created without credentials in the body", func(t *testing.T) {
		reg := &stubRegistrar{}
		h := newTestHandler(reg, &stubAuthenticator{})
		w := doJSON(t, h, http.MethodPost, "/v1/members", body)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "alice", reg.lastReq.Username)
		assert.NotContains(t, w.Body.String(), "pw")
		assert.NotContains(t, w.Body.String(), "dbpw")
	})

	t.Run("invalid token", func(t *testing.T) {
		h := newTestHandler(&stubRegistrar{registerErr: common.ErrInvalidToken}, &stubAuthenticator{})
		w := doJSON(t, h, http.MethodPost, "/v1/members", body)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("taken username", func(t *testing.T) {
		h := newTestHandler(&stubRegistrar{registerErr: common.ErrUsernameTaken}, &stubAuthenticator{})
		w := doJSON(t, h, http.MethodPost, "/v1/members", body)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("field rejection", func(t *testing.T) {
		verr := &services.ValidationError{Field: "username", Reason: "must not be empty"}
		h := newTestHandler(&stubRegistrar{registerErr: verr}, &stubAuthenticator{})
		w := doJSON(t, h, http.MethodPost, "/v1/members", body)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "username")
	})

	t.Run("pipeline failure exposes only the correlation id", func(t *testing.T) {
		regErr := &services.RegistrationError{
			Step:          services.StepRelational,
			CorrelationID: "cid-123",
			Err:           errors.New("pq: connection refused to 10.0.0.7"),
		}
		h := newTestHandler(&stubRegistrar{registerErr: regErr}, &stubAuthenticator{})
		w := doJSON(t, h, http.MethodPost, "/v1/members", body)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "cid-123")
		assert.NotContains(t, w.Body.String(), "10.0.0.7")
		assert.NotContains(t, w.Body.String(), "connection refused")
	})
}

func TestLoginEndpoint(t *testing.T) {
	t.Run("returns session token", func(t *testing.T) {
		h := newTestHandler(&stubRegistrar{}, &stubAuthenticator{token: "jwt-abc"})
		w := doJSON(t, h, http.MethodPost, "/v1/sessions", `{"username":"alice","password":"pw"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "jwt-abc")
	})

	t.Run("bad credentials are unauthorized with a generic message", func(t *testing.T) {
		h := newTestHandler(&stubRegistrar{}, &stubAuthenticator{err: common.ErrorUnauthorized})
		w := doJSON(t, h, http.MethodPost, "/v1/sessions", `{"username":"nobody","password":"pw"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NotContains(t, strings.ToLower(w.Body.String()), "not found")
	})
}

func TestSessionIntrospectionEndpoint(t *testing.T) {
	get := func(h http.Handler, authHeader string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/sessions/me", nil)
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	t.Run("resolves the token holder", func(t *testing.T) {
		auth := &stubAuthenticator{username: "alice", admin: true}
		h := newTestHandler(&stubRegistrar{}, auth)
		w := get(h, "Bearer jwt-abc")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "jwt-abc", auth.seen)
		assert.JSONEq(t, `{"username":"alice","admin":true}`, w.Body.String())
	})

	t.Run("missing header is unauthorized", func(t *testing.T) {
		h := newTestHandler(&stubRegistrar{}, &stubAuthenticator{username: "alice"})
		w := get(h, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong scheme is unauthorized", func(t *testing.T) {
		h := newTestHandler(&stubRegistrar{}, &stubAuthenticator{username: "alice"})
		w := get(h, "Basic jwt-abc")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejected token is unauthorized", func(t *testing.T) {
		h := newTestHandler(&stubRegistrar{}, &stubAuthenticator{err: common.ErrorUnauthorized})
		w := get(h, "Bearer expired")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid or expired session")
	})
}
