package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/smartwaste/smartwaste-api/apperrors"
	templates "github.com/smartwaste/smartwaste-api/templates/html"
)

// CodeValidMinutes is how long an emailed code stays valid
const CodeValidMinutes = 5

type mailSender func(msg *mail.SGMailV3) (status int, body string, err error)

// SendGrid emails proximity events and one-time codes
type SendGrid struct {
	from *mail.Email
	send mailSender
}

// NewSendGrid returns a SendGrid channel sending as fromEmail
func NewSendGrid(apiKey, fromEmail string) *SendGrid {
	client := sendgrid.NewSendClient(apiKey)
	return &SendGrid{
		from: mail.NewEmail("SmartWaste", fromEmail),
		send: func(msg *mail.SGMailV3) (int, string, error) {
			response, err := client.Send(msg)
			if err != nil {
				return 0, "", err
			}
			return response.StatusCode, response.Body, nil
		},
	}
}

// Dispatch implements Dispatcher
func (s *SendGrid) Dispatch(_ context.Context, ev ProximityEvent) error {
	if ev.RequesterEmail == "" {
		zap.S().Debugw("requester has no email, skipping proximity email", "requesterId", ev.RequesterID.Hex())
		return nil
	}
	html, plain := templates.RenderCollectorNearbyEmail(ev.RequesterName, ev.VehicleNumber, ev.DistanceMeters)
	return s.deliver(ev.RequesterEmail, ev.RequesterName, templates.CollectorNearbySubject, plain, html)
}

// SendCode implements CodeSender
func (s *SendGrid) SendCode(_ context.Context, to Recipient, code string) error {
	if to.Email == "" {
		return fmt.Errorf("no email address for verification code: %w", apperrors.ErrValidation)
	}
	html, plain := templates.RenderVerificationCodeEmail(to.Name, code, CodeValidMinutes)
	return s.deliver(to.Email, to.Name, templates.VerificationCodeSubject, plain, html)
}

func (s *SendGrid) deliver(toEmail, toName, subject, plainText, htmlContent string) error {
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(s.from, subject, to, plainText, htmlContent)
	status, body, err := s.send(message)
	if err != nil {
		zap.S().Errorw("failed to send email", "error", err, "to", toEmail)
		return fmt.Errorf("sendgrid: %v: %w", err, apperrors.ErrUnavailable)
	}
	if status >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", status, "body", body, "to", toEmail)
		return fmt.Errorf("sendgrid error: status %d: %w", status, apperrors.ErrUnavailable)
	}
	zap.S().Infow("email sent successfully", "to", toEmail, "subject", subject)
	return nil
}
