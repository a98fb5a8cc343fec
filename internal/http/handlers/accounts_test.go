package handlers

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

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driverhub/internal/auth"
	"driverhub/internal/domain/user"
	"driverhub/internal/http/middlewares"
	"driverhub/internal/service"
)

type fakeFlows struct {
	loginFn         func(ctx context.Context, email, password string) (user.AuthResponse, error)
	signupFn        func(ctx context.Context, in service.SignupInput) (user.AuthResponse, error)
	refreshFn       func(ctx context.Context, userID string) (user.AuthResponse, error)
	changeFn        func(ctx context.Context, userID, fullName, currentPassword, newPassword string) (user.Public, error)
	resetRequestFn  func(ctx context.Context, email string) error
	resetPasswordFn func(ctx context.Context, token, newPassword string) error
}

func (f *fakeFlows) Login(ctx context.Context, email, password string) (user.AuthResponse, error) {
	return f.loginFn(ctx, email, password)
}

func (f *fakeFlows) Signup(ctx context.Context, in service.SignupInput) (user.AuthResponse, error) {
	return f.signupFn(ctx, in)
}

func (f *fakeFlows) Refresh(ctx context.Context, userID string) (user.AuthResponse, error) {
	return f.refreshFn(ctx, userID)
}

func (f *fakeFlows) ChangePassword(ctx context.Context, userID, fullName, currentPassword, newPassword string) (user.Public, error) {
	return f.changeFn(ctx, userID, fullName, currentPassword, newPassword)
}

func (f *fakeFlows) RequestPasswordReset(ctx context.Context, email string) error {
	return f.resetRequestFn(ctx, email)
}

func (f *fakeFlows) ResetPassword(ctx context.Context, token, newPassword string) error {
	return f.resetPasswordFn(ctx, token, newPassword)
}

type staticVerifier struct {
	userID string
	err    error
}

func (v staticVerifier) VerifySession(string) (string, error) {
	return v.userID, v.err
}

func testRouter(flows *fakeFlows, verifier staticVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewAccountsHandler(flows, log)
	requireAuth := middlewares.NewAuthMiddleware(verifier).RequireAuth()

	r := gin.New()

	users := r.Group("/user")
	{
		users.POST("/login", h.Login)
		users.POST("/signup", h.Signup)
		users.POST("/resetPasswordRequest", h.ResetPasswordRequest)
		users.POST("/resetPassword", h.ResetPassword)
		users.POST("/refresh", requireAuth, h.Refresh)
		users.PUT("", requireAuth, h.Update)
	}

	return r
}

func doJSON(r *gin.Engine, method, path, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleAuthResponse() user.AuthResponse {
	return user.AuthResponse{
		User: user.Public{
			ID:       "user-1",
			Email:    "ada@example.com",
			FullName: "Ada",
			Role:     user.DefaultRole,
		},
		Token: "signed.jwt.token",
	}
}

func TestLoginEndpoint(t *testing.T) {
	flows := &fakeFlows{
		loginFn: func(_ context.Context, email, password string) (user.AuthResponse, error) {
			assert.Equal(t, "ada@example.com", email)
			assert.Equal(t, "hunter22", password)
			return sampleAuthResponse(), nil
		},
	}

	w := doJSON(testRouter(flows, staticVerifier{}), http.MethodPost, "/user/login",
		`{"email":"ada@example.com","password":"hunter22"}`, "")

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		User  map[string]any `json:"user"`
		Token string         `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "signed.jwt.token", body.Token)
	assert.Equal(t, "ada@example.com", body.User["email"])
	assert.NotContains(t, body.User, "passwordHash")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	flows := &fakeFlows{
		loginFn: func(context.Context, string, string) (user.AuthResponse, error) {
			return user.AuthResponse{}, service.ErrInvalidCredentials
		},
	}

	w := doJSON(testRouter(flows, staticVerifier{}), http.MethodPost, "/user/login",
		`{"email":"ada@example.com","password":"wrong"}`, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_credentials")
}

func TestLoginValidatesBody(t *testing.T) {
	flows := &fakeFlows{
		loginFn: func(context.Context, string, string) (user.AuthResponse, error) {
			t.Fatal("service must not be called on invalid input")
			return user.AuthResponse{}, nil
		},
	}
	r := testRouter(flows, staticVerifier{})

	for name, body := range map[string]string{
		"missing password": `{"email":"ada@example.com"}`,
		"not an email":     `{"email":"ada","password":"x"}`,
		"broken json":      `{"email":`,
	} {
		t.Run(name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/user/login", body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSignupEndpoint(t *testing.T) {
	flows := &fakeFlows{
		signupFn: func(_ context.Context, in service.SignupInput) (user.AuthResponse, error) {
			assert.Equal(t, "ada@example.com", in.Email)
			require.NotNil(t, in.Address)
			assert.Equal(t, "Recife", in.Address.City)
			return sampleAuthResponse(), nil
		},
	}

	w := doJSON(testRouter(flows, staticVerifier{}), http.MethodPost, "/user/signup",
		`{"email":"ada@example.com","password":"hunter22","fullName":"Ada","address":{"city":"Recife","uf":"PE"}}`, "")

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestSignupDuplicateEmailConflicts(t *testing.T) {
	flows := &fakeFlows{
		signupFn: func(context.Context, service.SignupInput) (user.AuthResponse, error) {
			return user.AuthResponse{}, service.ErrEmailTaken
		},
	}

	w := doJSON(testRouter(flows, staticVerifier{}), http.MethodPost, "/user/signup",
		`{"email":"ada@example.com","password":"hunter22","fullName":"Ada"}`, "")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "email_taken")
}

// The endpoint must answer the same way whether or not the account exists.
func TestResetRequestAlwaysAccepted(t *testing.T) {
	flows := &fakeFlows{
		resetRequestFn: func(context.Context, string) error { return nil },
	}

	w := doJSON(testRouter(flows, staticVerifier{}), http.MethodPost, "/user/resetPasswordRequest",
		`{"email":"whoever@example.com"}`, "")

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestResetPasswordInvalidToken(t *testing.T) {
	flows := &fakeFlows{
		resetPasswordFn: func(context.Context, string, string) error {
			return auth.ErrInvalidToken
		},
	}

	w := doJSON(testRouter(flows, staticVerifier{}), http.MethodPost, "/user/resetPassword",
		`{"token":"a.b.c","newPassword":"new-password"}`, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_token")
}

func TestRefreshRequiresSession(t *testing.T) {
	flows := &fakeFlows{
		refreshFn: func(_ context.Context, userID string) (user.AuthResponse, error) {
			assert.Equal(t, "user-1", userID)
			return sampleAuthResponse(), nil
		},
	}

	r := testRouter(flows, staticVerifier{userID: "user-1"})

	w := doJSON(r, http.MethodPost, "/user/refresh", `{}`, "token")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodPost, "/user/refresh", `{}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshRejectsBadToken(t *testing.T) {
	r := testRouter(&fakeFlows{}, staticVerifier{err: errors.New("bad token")})

	w := doJSON(r, http.MethodPost, "/user/refresh", `{}`, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateEndpoint(t *testing.T) {
	flows := &fakeFlows{
		changeFn: func(_ context.Context, userID, fullName, current, next string) (user.Public, error) {
			assert.Equal(t, "user-1", userID)
			assert.Equal(t, "Ada L.", fullName)
			assert.Equal(t, "old", current)
			assert.Equal(t, "new", next)
			return user.Public{ID: userID, FullName: fullName}, nil
		},
	}

	r := testRouter(flows, staticVerifier{userID: "user-1"})

	w := doJSON(r, http.MethodPut, "/user",
		`{"fullName":"Ada L.","currentPassword":"old","newPassword":"new"}`, "token")

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"user"`)
}

func TestUpdateRejectsLonePasswordField(t *testing.T) {
	flows := &fakeFlows{
		changeFn: func(context.Context, string, string, string, string) (user.Public, error) {
			t.Fatal("service must not be called")
			return user.Public{}, nil
		},
	}

	r := testRouter(flows, staticVerifier{userID: "user-1"})

	w := doJSON(r, http.MethodPut, "/user",
		`{"fullName":"Ada","newPassword":"only-new"}`, "token")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateWrongCurrentPassword(t *testing.T) {
	flows := &fakeFlows{
		changeFn: func(context.Context, string, string, string, string) (user.Public, error) {
			return user.Public{}, service.ErrInvalidCredentials
		},
	}

	r := testRouter(flows, staticVerifier{userID: "user-1"})

	w := doJSON(r, http.MethodPut, "/user",
		`{"fullName":"Ada","currentPassword":"wrong","newPassword":"new"}`, "token")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
