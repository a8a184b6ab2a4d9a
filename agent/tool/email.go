package tool

import (
	"context"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	contractx "github.com/tanpawarit/majordomo/agent/contract"
)

// EmailConfig holds the outbound SMTP account. Gmail with an app
// password works out of the box with the defaults.
type EmailConfig struct {
	SMTPHost string `envconfig:"SMTP_HOST" split_words:"true" default:"smtp.gmail.com"`
	SMTPPort int    `envconfig:"SMTP_PORT" split_words:"true" default:"587"`
	Address  string `envconfig:"ADDRESS" split_words:"true"`
	Password string `envconfig:"PASSWORD" split_words:"true"`
}

// sendMailFunc matches smtp.SendMail so tests can capture the outbound
// message without a live server.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SendEmailTool sends plain-text email through the configured SMTP
// account.
type SendEmailTool struct {
	cfg      EmailConfig
	sendMail sendMailFunc
	now      func() time.Time
}

var _ Tool = (*SendEmailTool)(nil)

func NewSendEmailTool(cfg EmailConfig) (*SendEmailTool, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, fmt.Errorf("email address is required")
	}
	if strings.TrimSpace(cfg.Password) == "" {
		return nil, fmt.Errorf("email password is required")
	}
	return &SendEmailTool{cfg: cfg, sendMail: smtp.SendMail, now: time.Now}, nil
}

func (t *SendEmailTool) Describe() contractx.ToolDescriptor {
	return contractx.ToolDescriptor{
		Name:        "send_email",
		Description: "Send a plain-text email from the household account to any address.",
		Parameters: contractx.ObjectSchema(map[string]any{
			"to": map[string]any{
				"type":        "string",
				"description": "Recipient email address.",
			},
			"subject": map[string]any{
				"type":        "string",
				"description": "Email subject line.",
			},
			"body": map[string]any{
				"type":        "string",
				"description": "Plain text email body.",
			},
		}, "to", "subject", "body"),
	}
}

func (t *SendEmailTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	to, _ := args["to"].(string)
	subject, _ := args["subject"].(string)
	body, _ := args["body"].(string)

	if _, err := mail.ParseAddress(to); err != nil {
		return "", fmt.Errorf("invalid recipient address %q: %w", to, err)
	}
	subject = strings.ReplaceAll(strings.ReplaceAll(subject, "\r", " "), "\n", " ")

	msg := buildMessage(t.cfg.Address, to, subject, body, t.now())
	addr := net.JoinHostPort(t.cfg.SMTPHost, fmt.Sprintf("%d", t.cfg.SMTPPort))
	auth := smtp.PlainAuth("", t.cfg.Address, t.cfg.Password, t.cfg.SMTPHost)

	if err := t.sendMail(addr, auth, t.cfg.Address, []string{to}, msg); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return fmt.Sprintf("Email sent to %s (subject: %q).", to, subject), nil
}

func buildMessage(from, to, subject, body string, at time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", at.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}
