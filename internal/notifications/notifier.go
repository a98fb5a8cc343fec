package notifications

import "context"

type SendPasswordResetInput struct {
	Email string
	Name  string
	Token string
}

type Notifier interface {
	SendPasswordReset(ctx context.Context, input SendPasswordResetInput) error
}
