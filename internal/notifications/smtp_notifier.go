package notifications

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPNotifier delivers reset emails over plain SMTP. The message embeds the
// reset token in a deep link the mobile app intercepts.
type SMTPNotifier struct {
	addr string // host:port
	from string
}

func NewSMTPNotifier(addr, from string) *SMTPNotifier {
	return &SMTPNotifier{addr: addr, from: from}
}

func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, in SendPasswordResetInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildResetMessage(n.from, in)

	err := smtp.SendMail(n.addr, nil, n.from, []string{in.Email}, msg)

	if err != nil {
		return fmt.Errorf("send reset email to %s: %w", in.Email, err)
	}

	return nil
}

func buildResetMessage(from string, in SendPasswordResetInput) []byte {
	var b strings.Builder

	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + in.Email + "\r\n")
	b.WriteString("Subject: Password reset\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("Hi " + in.Name + ",\r\n\r\n")
	b.WriteString("Use the link below to choose a new password. ")
	b.WriteString("It is valid for one hour and stops working as soon as your password changes.\r\n\r\n")
	b.WriteString("driverhub://resetPassword?token=" + in.Token + "\r\n\r\n")
	b.WriteString("If you did not ask for this, you can ignore this email.\r\n")

	return []byte(b.String())
}
