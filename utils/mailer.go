package utils

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type SESMailer struct {
	client *ses.Client
	source string
}

func NewSESMailer(cfg aws.Config, source string) *SESMailer {
	return &SESMailer{client: ses.NewFromConfig(cfg), source: source}
}

// Send delivers a plain-text email.
func (m *SESMailer) Send(ctx context.Context, to, subject, body string) error {
	input := &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(body),
				},
			},
		},
		Source: aws.String(m.source),
	}

	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("email send failed: %w", err)
	}
	return nil
}

func ResetEmail(code string) (subject, body string) {
	return "SI KALORI password reset code",
		fmt.Sprintf("Your password reset code is: %s\n\nIt expires in 15 minutes. Ignore this email if you did not ask for a reset.", code)
}

func ContactEmail(name, email, message string) (subject, body string) {
	return fmt.Sprintf("[SI KALORI contact] %s", name),
		fmt.Sprintf("From: %s <%s>\n\n%s", name, email, message)
}
