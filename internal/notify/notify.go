// Package notify sends the single end-of-run email.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"b2downloader/config"
	"b2downloader/internal/models"
)

// Sender delivers a prepared message.
type Sender interface {
	Send(ctx context.Context, msg *mail.Msg) error
}

// SMTPSender submits messages through an SMTP server with PLAIN auth.
type SMTPSender struct {
	client *mail.Client
}

func NewSMTPSender(m config.Mail) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithPort(m.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.Sender),
		mail.WithPassword(m.Password),
	}
	if m.Port == 465 {
		opts = append(opts, mail.WithSSLPort(false))
	}
	if m.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(m.Timeout))
	}

	client, err := mail.NewClient(m.Server, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}
	return &SMTPSender{client: client}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg *mail.Msg) error {
	return s.client.DialAndSendWithContext(ctx, msg)
}

// Report is what the email says about a run.
type Report struct {
	Outcome   models.Outcome
	RunID     string
	Bucket    string
	Timestamp time.Time
	Total     int
	Succeeded int
	Failed    int
	Bytes     int64
	Duration  time.Duration
	Error     string
}

func ReportFromSummary(s *models.RunSummary) Report {
	return Report{
		Outcome:   s.Outcome,
		RunID:     s.RunID,
		Bucket:    s.BucketName,
		Timestamp: s.FinishedAt,
		Total:     s.TotalObjects,
		Succeeded: len(s.Succeeded),
		Failed:    len(s.Failed),
		Bytes:     s.TotalBytes,
		Duration:  s.Duration(),
		Error:     s.Error,
	}
}

type Notifier struct {
	sender    Sender
	from      string
	recipient string
	timeout   time.Duration
	log       *zap.Logger
}

// New builds a notifier from the mail settings. Without a complete mail
// group the notifier is inert and Notify only logs a warning.
func New(cfg *config.Config, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	if !cfg.MailConfigured() {
		if cfg.MailPartial() {
			log.Warn("Incomplete mail settings, notifications disabled",
				zap.Bool("server", cfg.Mail.Server != ""),
				zap.Bool("sender", cfg.Mail.Sender != ""),
				zap.Bool("password", cfg.Mail.Password != ""),
				zap.Bool("recipient", cfg.Mail.Recipient != ""))
		}
		return &Notifier{log: log}
	}
	if !cfg.MailPortValid() {
		log.Warn("Invalid MAIL_PORT, notifications disabled", zap.Int("port", cfg.Mail.Port))
		return &Notifier{log: log}
	}

	sender, err := NewSMTPSender(cfg.Mail)
	if err != nil {
		log.Warn("Mail transport unavailable, notifications disabled", zap.Error(err))
		return &Notifier{log: log}
	}
	return NewWithSender(cfg.Mail, sender, log)
}

func NewWithSender(m config.Mail, sender Sender, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		sender:    sender,
		from:      m.Sender,
		recipient: m.Recipient,
		timeout:   m.Timeout,
		log:       log,
	}
}

func (n *Notifier) Enabled() bool {
	return n.sender != nil
}

// Notify sends the message for r.Outcome. It returns false without error when
// mail is not configured; transport failures wrap models.ErrNotify.
func (n *Notifier) Notify(ctx context.Context, r Report) (bool, error) {
	if n.sender == nil {
		n.log.Warn("Mail settings not configured, skipping notification", zap.String("outcome", string(r.Outcome)))
		return false, nil
	}

	msg, err := n.message(r)
	if err != nil {
		return false, fmt.Errorf("%w: %w", models.ErrNotify, err)
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return false, fmt.Errorf("%w: %w", models.ErrNotify, err)
	}

	n.log.Info("Notification sent", zap.String("outcome", string(r.Outcome)), zap.String("recipient", n.recipient))
	return true, nil
}

func (n *Notifier) message(r Report) (*mail.Msg, error) {
	subject, body, err := render(r)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(n.recipient); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func render(r Report) (string, string, error) {
	tpl, ok := templates[r.Outcome]
	if !ok {
		return "", "", fmt.Errorf("no template for outcome %q", r.Outcome)
	}

	var subject, body bytes.Buffer
	if err := tpl.subject.Execute(&subject, r); err != nil {
		return "", "", fmt.Errorf("failed to render subject: %w", err)
	}
	if err := tpl.body.Execute(&body, r); err != nil {
		return "", "", fmt.Errorf("failed to render body: %w", err)
	}
	return subject.String(), body.String(), nil
}
