// Package notify emails creators when they receive a tip.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/illegalcall/linkbio/internal/config"
)

//go:embed templates/*.html
var templates embed.FS

const tipSubject = "You received a tip!"

// TipNotice is the content of a tip notification. Amounts are preformatted.
type TipNotice struct {
	RecipientName string
	Amount        string
	NetAmount     string
	PayerEmail    string
}

type Notifier interface {
	TipReceived(ctx context.Context, to string, notice TipNotice) error
}

type SMTPNotifier struct {
	cfg    config.EmailConfig
	tmpl   *template.Template
	logger *slog.Logger
}

func NewSMTPNotifier(cfg config.EmailConfig, logger *slog.Logger) (*SMTPNotifier, error) {
	tmpl, err := template.ParseFS(templates, "templates/tip_received.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email template: %w", err)
	}
	return &SMTPNotifier{cfg: cfg, tmpl: tmpl, logger: logger}, nil
}

func (n *SMTPNotifier) TipReceived(ctx context.Context, to string, notice TipNotice) error {
	if to == "" {
		return fmt.Errorf("recipient address is required")
	}
	if strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("invalid recipient address %q", to)
	}

	var body bytes.Buffer
	if err := n.tmpl.Execute(&body, notice); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	var msg bytes.Buffer
	mw := multipart.NewWriter(&msg)

	msg.WriteString("MIME-version: 1.0;\r\n")
	msg.WriteString(fmt.Sprintf("From: %s\r\n", n.cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", tipSubject))
	msg.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=%s\r\n", mw.Boundary()))
	msg.WriteString("\r\n")

	h := make(textproto.MIMEHeader)
	h.Set("Content-Type", "text/html; charset=UTF-8")
	pw, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create email body part: %w", err)
	}
	if _, err := pw.Write(body.Bytes()); err != nil {
		return fmt.Errorf("failed to write email body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if n.cfg.Password != "" {
		auth = smtp.PlainAuth("", n.cfg.From, n.cfg.Password, n.cfg.Host)
	}

	err = smtp.SendMail(
		fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port),
		auth,
		n.cfg.From,
		[]string{to},
		msg.Bytes(),
	)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Info("Tip notification sent", "recipient", to)
	return nil
}

// FormatAmount renders minor units as a decimal with the currency code.
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, minor/100, minor%100, strings.ToUpper(currency))
}
