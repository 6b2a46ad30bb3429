package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

// EmailSender mirrors family notifications to members who stored an email
// address, using Amazon SES. It stays disabled when no sender address is
// configured so deployments without SES credentials work unchanged.
type EmailSender struct {
	client    *sesv2.Client
	fromEmail string
	fromName  string
	enabled   bool
	log       *zap.Logger
}

// NewEmailSender creates the SES-backed sender. An empty fromEmail yields
// a disabled sender and no AWS configuration is loaded.
func NewEmailSender(ctx context.Context, awsRegion, fromEmail, fromName string, logger *zap.Logger) (*EmailSender, error) {
	if fromEmail == "" {
		logger.Info("email mirror disabled: SES_FROM_EMAIL not configured")
		return &EmailSender{enabled: false, log: logger}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("email mirror enabled",
		zap.String("from", fromEmail),
		zap.String("region", awsRegion))

	return &EmailSender{
		client:    sesv2.NewFromConfig(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
		enabled:   true,
		log:       logger,
	}, nil
}

// IsEnabled returns whether the sender is configured to deliver email.
func (s *EmailSender) IsEnabled() bool {
	return s.enabled
}

// Send delivers one notification to toEmail. familyName becomes part of
// the subject line.
func (s *EmailSender) Send(ctx context.Context, toEmail, familyName, text string) error {
	if !s.enabled {
		return nil
	}

	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}
	subject := fmt.Sprintf("[%s] Family update", familyName)

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(text),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}
	s.log.Debug("email mirror sent", zap.String("to", toEmail), zap.String("subject", subject))
	return nil
}
