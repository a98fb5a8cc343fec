package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"driverhub/internal/auth"
	"driverhub/internal/domain/job"
	"driverhub/internal/domain/user"
	"driverhub/internal/jobs"
	"driverhub/internal/repo/postgres"
	"driverhub/internal/security"
)

var (
	// ErrInvalidCredentials never says whether the email or the password
	// was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already taken")
	ErrUserNotFound       = errors.New("user not found")
)

// UserDirectory is the persistence surface the use-cases need.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	Create(ctx context.Context, u user.User, addr *user.Address) (user.User, error)
	UpdateProfile(ctx context.Context, id, fullName string) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

type JobEnqueuer interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
	GetByIdempotencyKey(ctx context.Context, key string) (job.Job, error)
}

// Waker nudges the queue worker so a freshly enqueued job is picked up
// before the next poll tick. Best effort: a missed nudge only delays the
// email until the poll.
type Waker interface {
	NotifyJobEnqueued(ctx context.Context) error
}

// TokenIssuer is what the use-cases need from auth.Manager.
type TokenIssuer interface {
	IssueSession(userID string) (string, error)
	IssueReset(userID, passwordHash string) (string, error)
	VerifyReset(tokenStr, passwordHash string) (string, error)
	DecodeUnverified(tokenStr string) (string, bool)
}

// AuthService orchestrates the credential-lifecycle flows: login, signup,
// refresh, change-password and the password-reset protocol.
type AuthService struct {
	users    UserDirectory
	jobQueue JobEnqueuer
	waker    Waker
	tokens   TokenIssuer
	hasher   *security.Hasher
	log      *slog.Logger
}

func NewAuthService(users UserDirectory, jobQueue JobEnqueuer, waker Waker, tokens TokenIssuer, hasher *security.Hasher, log *slog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		jobQueue: jobQueue,
		waker:    waker,
		tokens:   tokens,
		hasher:   hasher,
		log:      log,
	}
}

type SignupInput struct {
	Email        string
	Password     string
	FullName     string
	Phone        string
	Username     string
	TextToSpeech bool
	Address      *AddressInput
}

type AddressInput struct {
	Street       string
	Number       string
	Neighborhood string
	City         string
	State        string
	UF           string
	Country      string
}

// Login authenticates by email and password. An unknown email and a wrong
// password are indistinguishable to the caller; an account with no local
// password never verifies.
func (s *AuthService) Login(ctx context.Context, email, password string) (user.AuthResponse, error) {
	u, err := s.users.GetByEmail(ctx, email)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return user.AuthResponse{}, ErrInvalidCredentials
		}

		return user.AuthResponse{}, fmt.Errorf("login lookup: %w", err)
	}

	if !s.hasher.Verify(ctx, password, u.PasswordHash) {
		s.log.WarnContext(ctx, "wrong password attempt", "email", u.Email)
		return user.AuthResponse{}, ErrInvalidCredentials
	}

	return s.buildAuthResponse(u)
}

// Signup creates a user, optionally with an address in the same
// transaction, and returns a fresh session. The password is hashed here,
// never inside the persistence layer.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (user.AuthResponse, error) {
	hash, err := s.hasher.Hash(ctx, in.Password)

	if err != nil {
		return user.AuthResponse{}, fmt.Errorf("hash password: %w", err)
	}

	u := user.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		Username:     in.Username,
		FullName:     in.FullName,
		Phone:        in.Phone,
		Role:         user.DefaultRole,
		PasswordHash: hash,
		Enabled:      true,
		TextToSpeech: in.TextToSpeech,
		Creation:     time.Now().UTC(),
	}

	var addr *user.Address

	if in.Address != nil {
		addr = &user.Address{
			ID:           uuid.NewString(),
			Street:       in.Address.Street,
			Number:       in.Address.Number,
			Neighborhood: in.Address.Neighborhood,
			City:         in.Address.City,
			State:        in.Address.State,
			UF:           in.Address.UF,
			Country:      in.Address.Country,
		}
	}

	created, err := s.users.Create(ctx, u, addr)

	if err != nil {
		if errors.Is(err, postgres.ErrEmailTaken) {
			return user.AuthResponse{}, ErrEmailTaken
		}

		return user.AuthResponse{}, fmt.Errorf("create user: %w", err)
	}

	return s.buildAuthResponse(created)
}

// Refresh issues a new session for an already-authenticated user.
func (s *AuthService) Refresh(ctx context.Context, userID string) (user.AuthResponse, error) {
	u, err := s.users.GetByID(ctx, userID)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return user.AuthResponse{}, ErrUserNotFound
		}

		return user.AuthResponse{}, fmt.Errorf("refresh lookup: %w", err)
	}

	return s.buildAuthResponse(u)
}

// ChangePassword updates the display name, and replaces the password when
// both the current and the new one are supplied. A wrong current password
// leaves everything untouched.
func (s *AuthService) ChangePassword(ctx context.Context, userID, fullName, currentPassword, newPassword string) (user.Public, error) {
	u, err := s.users.GetByID(ctx, userID)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return user.Public{}, ErrUserNotFound
		}

		return user.Public{}, fmt.Errorf("change password lookup: %w", err)
	}

	changePassword := currentPassword != "" && newPassword != ""

	if changePassword && !s.hasher.Verify(ctx, currentPassword, u.PasswordHash) {
		s.log.WarnContext(ctx, "wrong current password on change", "user_id", u.ID)
		return user.Public{}, ErrInvalidCredentials
	}

	if err := s.users.UpdateProfile(ctx, u.ID, fullName); err != nil {
		return user.Public{}, fmt.Errorf("update profile: %w", err)
	}

	if changePassword {
		hash, err := s.hasher.Hash(ctx, newPassword)

		if err != nil {
			return user.Public{}, fmt.Errorf("hash password: %w", err)
		}

		if err := s.users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
			return user.Public{}, fmt.Errorf("update password: %w", err)
		}
	}

	u.FullName = fullName

	return u.Public(), nil
}

// RequestPasswordReset enqueues a reset email for the account, if there is
// one. Unknown emails and accounts without a local password return success
// without sending anything, so the endpoint cannot be used to probe which
// emails exist.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)

	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			s.log.DebugContext(ctx, "reset requested for unknown email")
			return nil
		}

		return fmt.Errorf("reset request lookup: %w", err)
	}

	if !u.HasPassword() {
		s.log.DebugContext(ctx, "reset requested for passwordless account", "user_id", u.ID)
		return nil
	}

	token, err := s.tokens.IssueReset(u.ID, u.PasswordHash)

	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	payload := jobs.PasswordResetEmailPayload{
		UserID:      u.ID,
		Email:       u.Email,
		Name:        u.FullName,
		Token:       token,
		RequestedAt: time.Now().UTC(),
	}

	raw, err := payload.JSON()

	if err != nil {
		return fmt.Errorf("encode reset payload: %w", err)
	}

	// Collapse double-clicks into one email: one job per user per minute.
	key := fmt.Sprintf("password_reset:%s:%d", u.ID, time.Now().UTC().Unix()/60)

	if _, dupErr := s.jobQueue.GetByIdempotencyKey(ctx, key); dupErr == nil {
		return nil // already queued this minute
	} else if !errors.Is(dupErr, job.ErrJobNotFound) {
		return fmt.Errorf("reset dedupe lookup: %w", dupErr)
	}

	_, err = s.jobQueue.Create(ctx, job.CreateRequest{
		Type:           string(jobs.JobPasswordResetEmail),
		Payload:        raw,
		RunAt:          time.Now().UTC(),
		MaxAttempts:    10,
		IdempotencyKey: &key,
		UserID:         &u.ID,
	})

	if err != nil {
		// two requests racing between the dedupe check and the insert
		if postgres.IsUniqueViolation(err) {
			return nil
		}

		return fmt.Errorf("enqueue reset email: %w", err)
	}

	if s.waker != nil {
		if wakeErr := s.waker.NotifyJobEnqueued(ctx); wakeErr != nil {
			s.log.WarnContext(ctx, "worker wake failed", "err", wakeErr)
		}
	}

	return nil
}

// ResetPassword swaps the password for the account named by a valid reset
// token. Because the token is signed with the hash it was issued against,
// this also invalidates the token just used and every other outstanding
// reset token for the account.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, ok := s.tokens.DecodeUnverified(token)

	if !ok {
		return auth.ErrInvalidToken
	}

	u, err := s.users.GetByID(ctx, userID)

	if err != nil {
		// A stale subject must look the same as a forged token.
		if errors.Is(err, postgres.ErrUserNotFound) {
			return auth.ErrInvalidToken
		}

		return fmt.Errorf("reset lookup: %w", err)
	}

	// An account with no local password has no hash to bind a reset token
	// to, so any token naming it is forged.
	if !u.HasPassword() {
		s.log.WarnContext(ctx, "reset attempted for passwordless account", "user_id", u.ID)
		return auth.ErrInvalidToken
	}

	if _, err := s.tokens.VerifyReset(token, u.PasswordHash); err != nil {
		s.log.WarnContext(ctx, "invalid reset token", "user_id", u.ID)
		return auth.ErrInvalidToken
	}

	hash, err := s.hasher.Hash(ctx, newPassword)

	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return nil
}

func (s *AuthService) buildAuthResponse(u user.User) (user.AuthResponse, error) {
	token, err := s.tokens.IssueSession(u.ID)

	if err != nil {
		return user.AuthResponse{}, fmt.Errorf("issue session token: %w", err)
	}

	return user.AuthResponse{
		User:  u.Public(),
		Token: token,
	}, nil
}
