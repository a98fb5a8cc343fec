package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ResetTokenTTL is fixed: reset links are meant to be used right away.
const ResetTokenTTL = time.Hour

// ErrInvalidToken is the only verification failure callers ever see.
// Expired, forged and malformed tokens are deliberately indistinguishable so
// the endpoint cannot be used as an oracle.
var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Manager issues and verifies the two token kinds the service uses: session
// tokens signed with the process-wide secret, and single-use password reset
// tokens signed with the user's current bcrypt hash. Binding the reset
// signature to the hash makes every reset token self-invalidating: the
// moment the password changes the signing key no longer matches.
type Manager struct {
	secret     []byte
	sessionTTL time.Duration
	now        func() time.Time
}

func NewManager(secret string, sessionTTL time.Duration) *Manager {
	return &Manager{
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

func (m *Manager) IssueSession(userID string) (string, error) {
	return m.sign("session", userID, m.secret, m.sessionTTL)
}

// VerifySession returns the subject user id of a valid session token.
func (m *Manager) VerifySession(tokenStr string) (string, error) {
	return m.verify("session", tokenStr, m.secret)
}

// IssueReset creates a password reset token keyed to the user's current
// password hash.
func (m *Manager) IssueReset(userID, passwordHash string) (string, error) {
	return m.sign("reset", userID, []byte(passwordHash), ResetTokenTTL)
}

// VerifyReset returns the subject user id when the token was signed with the
// given password hash and has not expired. An empty hash never verifies:
// it would mean checking against an empty HMAC key, which anyone can
// reproduce offline.
func (m *Manager) VerifyReset(tokenStr, passwordHash string) (string, error) {
	if passwordHash == "" {
		return "", ErrInvalidToken
	}

	return m.verify("reset", tokenStr, []byte(passwordHash))
}

// DecodeUnverified extracts the subject claim without checking the
// signature. It exists only to discover whose password hash a reset token
// must be verified against; the real check happens in VerifyReset.
func (m *Manager) DecodeUnverified(tokenStr string) (string, bool) {
	var claims Claims

	_, _, err := jwt.NewParser().ParseUnverified(tokenStr, &claims)

	if err != nil || claims.Subject == "" {
		return "", false
	}

	return claims.Subject, true
}

func (m *Manager) sign(tokenType, userID string, key []byte, ttl time.Duration) (string, error) {
	now := m.now().UTC()

	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(key)
}

func (m *Manager) verify(tokenType, tokenStr string, key []byte) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(t *jwt.Token) (interface{}, error) {
			// Enforce HS256
			_, ok := t.Method.(*jwt.SigningMethodHMAC)

			if !ok {
				return nil, ErrInvalidToken
			}
			return key, nil
		},
		jwt.WithTimeFunc(m.now),
	)

	if err != nil {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)

	if !ok || !token.Valid || claims.TokenType != tokenType || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
