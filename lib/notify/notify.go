package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/notify")

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

// Notifier sends out-of-band alerts when unattended automation fails.
// The zero value is a disabled notifier.
type Notifier struct {
	smtp SmtpConfig
	to   string
}

func New(smtp SmtpConfig, to string) Notifier {
	return Notifier{smtp: smtp, to: to}
}

func (n Notifier) Enabled() bool {
	return n.smtp.Server != "" && n.to != ""
}

func (n Notifier) Send(ctx context.Context, subject, body string) error {
	if !n.Enabled() {
		return nil
	}

	_, span := tracer.Start(ctx, "Send")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("atd <%s>", n.smtp.EmailAddress)
	mail.To = []string{n.to}
	mail.Subject = subject
	mail.Text = []byte(body)

	addr := fmt.Sprintf("%s:%d", n.smtp.Server, n.smtp.Port)
	err := mail.Send(addr, smtp.PlainAuth("", n.smtp.EmailAddress, n.smtp.Password, n.smtp.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}

// SubmissionFailed renders the alert body for a rejected clock submission.
func SubmissionFailed(date string, err error) (string, string) {
	subject := fmt.Sprintf("clock submission failed for %s", date)
	body := fmt.Sprintf(`A clock submission against the attendance portal was rejected.

Date: %s
Error: %s

The day was left untouched, resubmit it manually once the cause is fixed.`, date, err)
	return subject, body
}

// SchemaDrifted renders the alert body for a changed modify-form schema.
func SchemaDrifted(date string) (string, string) {
	subject := "attendance portal form layout changed"
	body := fmt.Sprintf(`The clock modification form served by the portal no longer matches
the field schema recorded on the last successful submission (first seen
while processing %s).

Remembered field values may no longer line up with the live form, confirm
them interactively before submitting again.`, date)
	return subject, body
}
