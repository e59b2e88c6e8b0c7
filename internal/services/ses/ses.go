// Package ses provides email notification services via AWS SES
package ses

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	appConfig "health-eligibility-engine/internal/config"
	"health-eligibility-engine/internal/models"
	"health-eligibility-engine/internal/utils"
)

// Service handles SES email operations
type Service struct {
	client          *ses.Client
	fromEmail       string
	escalationEmail string
}

// EmailParams represents parameters for sending an email
type EmailParams struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// escalationParams feeds the escalation alert template.
type escalationParams struct {
	SessionID  string
	Tier       string
	Category   string
	Action     string
	ScreenedAt string
}

// SendEmailResult contains the result of sending an email
type SendEmailResult struct {
	MessageID string
	SentAt    time.Time
}

// NewService creates a new SES service
func NewService(ctx context.Context, appCfg *appConfig.Config) (*Service, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Service{
		client:          ses.NewFromConfig(cfg),
		fromEmail:       appCfg.SESSenderEmail,
		escalationEmail: appCfg.EscalationEmail,
	}, nil
}

// SendEmail sends a basic email
func (s *Service) SendEmail(ctx context.Context, params EmailParams) (*SendEmailResult, error) {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{params.To},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(params.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{},
		},
	}

	if params.HTMLBody != "" {
		input.Message.Body.Html = &types.Content{
			Data:    aws.String(params.HTMLBody),
			Charset: aws.String("UTF-8"),
		}
	}

	if params.TextBody != "" {
		input.Message.Body.Text = &types.Content{
			Data:    aws.String(params.TextBody),
			Charset: aws.String("UTF-8"),
		}
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		utils.GetLogger().Error("Failed to send email",
			zap.String("to", params.To),
			zap.String("subject", params.Subject),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	return &SendEmailResult{
		MessageID: aws.ToString(result.MessageId),
		SentAt:    time.Now(),
	}, nil
}

// escalationTemplate renders the care-team alert for a critical screen.
var escalationTemplate = template.Must(template.New("escalation").Parse(`
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
	<h2 style="color: #b00020;">Critical symptom screen</h2>
	<p>A conversation triggered the critical emergency tier and was halted.</p>
	<table cellpadding="6" style="border-collapse: collapse;">
		<tr><td><b>Session</b></td><td>{{.SessionID}}</td></tr>
		<tr><td><b>Tier</b></td><td>{{.Tier}}</td></tr>
		<tr><td><b>Category</b></td><td>{{.Category}}</td></tr>
		<tr><td><b>Action given</b></td><td>{{.Action}}</td></tr>
		<tr><td><b>Screened at</b></td><td>{{.ScreenedAt}}</td></tr>
	</table>
	<p>No patient response text is included in this alert.</p>
</body>
</html>`))

// SendEscalationAlert emails the care team about a critical triage hit.
// It is a no-op when no escalation recipient is configured.
func (s *Service) SendEscalationAlert(ctx context.Context, sessionID string, screen models.TriageResult) (*SendEmailResult, error) {
	if s.escalationEmail == "" {
		return nil, nil
	}

	params := escalationParams{
		SessionID:  sessionID,
		Tier:       string(screen.Tier),
		Category:   screen.Category,
		Action:     screen.Action,
		ScreenedAt: time.Now().UTC().Format(time.RFC3339),
	}

	var html bytes.Buffer
	if err := escalationTemplate.Execute(&html, params); err != nil {
		return nil, fmt.Errorf("failed to render escalation email: %w", err)
	}

	text := fmt.Sprintf(
		"Critical symptom screen\nSession: %s\nCategory: %s\nAction given: %s\nScreened at: %s\n",
		sessionID, screen.Category, screen.Action, params.ScreenedAt,
	)

	result, err := s.SendEmail(ctx, EmailParams{
		To:       s.escalationEmail,
		Subject:  fmt.Sprintf("[%s] Critical symptom screen in session %s", screen.Category, sessionID),
		HTMLBody: html.String(),
		TextBody: text,
	})
	if err != nil {
		return nil, err
	}

	utils.GetLogger().Info("Sent escalation alert",
		zap.String("session_id", sessionID),
		zap.String("category", screen.Category),
		zap.String("message_id", result.MessageID),
	)

	return result, nil
}
