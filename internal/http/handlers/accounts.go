package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"driverhub/internal/auth"
	"driverhub/internal/config"
	"driverhub/internal/domain/user"
	"driverhub/internal/http/middlewares"
	"driverhub/internal/service"
)

// AccountFlows is the slice of the auth service the handler needs; tests
// fake it.
type AccountFlows interface {
	Login(ctx context.Context, email, password string) (user.AuthResponse, error)
	Signup(ctx context.Context, in service.SignupInput) (user.AuthResponse, error)
	Refresh(ctx context.Context, userID string) (user.AuthResponse, error)
	ChangePassword(ctx context.Context, userID, fullName, currentPassword, newPassword string) (user.Public, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type AccountsHandler struct {
	svc AccountFlows
	log *slog.Logger
}

func NewAccountsHandler(svc AccountFlows, log *slog.Logger) *AccountsHandler {
	return &AccountsHandler{svc: svc, log: log}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type SignupAddress struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	UF           string `json:"uf"`
	Country      string `json:"country"`
}

type SignupRequest struct {
	Email        string         `json:"email" binding:"required,email"`
	Password     string         `json:"password" binding:"required,min=6"`
	FullName     string         `json:"fullName" binding:"required"`
	Phone        string         `json:"phone"`
	Username     string         `json:"username"`
	TextToSpeech bool           `json:"textToSpeech"`
	Address      *SignupAddress `json:"address"`
}

type ChangePasswordRequest struct {
	FullName        string `json:"fullName" binding:"required"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type ResetRequestRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

func (h *AccountsHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// bcrypt work happens in here, so allow more than a bare lookup would
	cctx, cancel := config.WithTimeout(5 * time.Second)

	defer cancel()

	resp, err := h.svc.Login(cctx, req.Email, req.Password)

	if err != nil {
		h.respondAuthError(ctx, err, "Could not log in")
		return
	}

	ctx.JSON(http.StatusOK, resp)
}

func (h *AccountsHandler) Signup(ctx *gin.Context) {
	var req SignupRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)

	defer cancel()

	in := service.SignupInput{
		Email:        req.Email,
		Password:     req.Password,
		FullName:     req.FullName,
		Phone:        req.Phone,
		Username:     req.Username,
		TextToSpeech: req.TextToSpeech,
	}

	if req.Address != nil {
		in.Address = &service.AddressInput{
			Street:       req.Address.Street,
			Number:       req.Address.Number,
			Neighborhood: req.Address.Neighborhood,
			City:         req.Address.City,
			State:        req.Address.State,
			UF:           req.Address.UF,
			Country:      req.Address.Country,
		}
	}

	resp, err := h.svc.Signup(cctx, in)

	if err != nil {
		h.respondAuthError(ctx, err, "Could not create account")
		return
	}

	ctx.JSON(http.StatusCreated, resp)
}

func (h *AccountsHandler) Refresh(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing session")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	resp, err := h.svc.Refresh(cctx, userID)

	if err != nil {
		h.respondAuthError(ctx, err, "Could not refresh session")
		return
	}

	ctx.JSON(http.StatusOK, resp)
}

func (h *AccountsHandler) Update(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing session")
		return
	}

	var req ChangePasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// both or neither: a lone current/new password is a malformed request
	if (req.CurrentPassword == "") != (req.NewPassword == "") {
		RespondBadRequest(ctx, "Both currentPassword and newPassword are required to change the password", nil)
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)

	defer cancel()

	pub, err := h.svc.ChangePassword(cctx, userID, req.FullName, req.CurrentPassword, req.NewPassword)

	if err != nil {
		h.respondAuthError(ctx, err, "Could not update account")
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{"user": pub})
}

// ResetPasswordRequest always answers 202; whether an email goes out is
// not observable from the response.
func (h *AccountsHandler) ResetPasswordRequest(ctx *gin.Context) {
	var req ResetRequestRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)

	defer cancel()

	if err := h.svc.RequestPasswordReset(cctx, req.Email); err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "reset request failed", "err", err)
		RespondInternal(ctx, "Could not process reset request")
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *AccountsHandler) ResetPassword(ctx *gin.Context) {
	var req ResetPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)

	defer cancel()

	if err := h.svc.ResetPassword(cctx, req.Token, req.NewPassword); err != nil {
		h.respondAuthError(ctx, err, "Could not reset password")
		return
	}

	ctx.JSON(http.StatusAccepted, gin.H{"status": "password_updated"})
}

// respondAuthError maps service sentinels onto statuses. Everything the
// client could use as an oracle collapses into the same 401.
func (h *AccountsHandler) respondAuthError(ctx *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
	case errors.Is(err, auth.ErrInvalidToken):
		RespondUnAuthorized(ctx, "invalid_token", "Invalid or expired token.")
	case errors.Is(err, service.ErrEmailTaken):
		RespondConflict(ctx, "email_taken", "Email is already in use.")
	case errors.Is(err, service.ErrUserNotFound):
		RespondNotFound(ctx, "Account not found.")
	default:
		h.log.ErrorContext(ctx.Request.Context(), "account flow failed", "err", err)
		RespondInternal(ctx, fallback)
	}
}
