package jobs

import (
	"encoding/json"
	"time"
)

// PasswordResetEmailPayload carries everything the worker needs to send a
// reset email without loading the user again. The token is already signed
// against the password hash that was current when the request was made; if
// the password changes before the email is opened, the link simply stops
// verifying.
type PasswordResetEmailPayload struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Token       string    `json:"token"`
	RequestedAt time.Time `json:"requestedAt"`
	RequestID   string    `json:"requestId,omitempty"`
}

func (p PasswordResetEmailPayload) JSON() (json.RawMessage, error) {
	b, err := json.Marshal(p)

	if err != nil {
		return nil, err
	}

	return json.RawMessage(b), nil
}
