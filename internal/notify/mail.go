package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shrimpsizemoose/trekker/logger"
	gomail "github.com/wneessen/go-mail"

	"github.com/epitome/examportal/internal/models"
)

const defaultSMTPPort = 587

type MailConfig struct {
	Host     string   `toml:"host"`
	Port     int      `toml:"port"`
	Username string   `toml:"username"`
	Password string   `toml:"password"`
	From     string   `toml:"from"`
	Admins   []string `toml:"admins"`
}

func (c MailConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

func (c MailConfig) port() int {
	if c.Port == 0 {
		return defaultSMTPPort
	}
	return c.Port
}

// Attachment is one file added to a mail.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type sendFunc func(ctx context.Context, msg *gomail.Msg) error

// MailSender mails the result to the configured admins and to every address
// on the candidate's profile. Both get the PDF summary; admins also get
// today's log.
type MailSender struct {
	cfg      MailConfig
	composer *Composer
	todayLog func() (string, bool)
	send     sendFunc
	now      func() time.Time
}

func NewMailSender(cfg MailConfig, composer *Composer, todayLog func() (string, bool)) *MailSender {
	m := &MailSender{
		cfg:      cfg,
		composer: composer,
		todayLog: todayLog,
		now:      time.Now,
	}
	m.send = m.smtpSend
	return m
}

func (m *MailSender) Name() string {
	return "mail"
}

func (m *MailSender) Send(ctx context.Context, r models.ExamResult) error {
	var errs []error

	var attachments []Attachment
	if pdf, err := m.summary(r); err != nil {
		logger.Error.Printf("Failed to render result summary for %s: %v", r.Username, err)
	} else {
		attachments = append(attachments, pdf)
	}

	if len(m.cfg.Admins) > 0 {
		if err := m.sendAdmin(ctx, r, attachments); err != nil {
			errs = append(errs, fmt.Errorf("admin mail: %w", err))
		}
	}

	recipients := models.SplitEmails(r.Email)
	if len(recipients) == 0 {
		logger.Debug.Printf("No candidate email for %s, skipping candidate mail", r.Username)
		return errors.Join(errs...)
	}

	msg, err := m.composer.Candidate(r)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	for _, to := range recipients {
		if err := m.deliver(ctx, []string{to}, msg, attachments); err != nil {
			errs = append(errs, fmt.Errorf("candidate mail to %s: %w", to, err))
		}
	}

	return errors.Join(errs...)
}

func (m *MailSender) summary(r models.ExamResult) (Attachment, error) {
	data, err := m.composer.PDF(r)
	if err != nil {
		return Attachment{}, err
	}
	username := r.Username
	if username == "" {
		username = "candidate"
	}
	return Attachment{
		Name:        fmt.Sprintf("EMIS_Result_%s_%s.pdf", username, m.now().Format("20060102_150405")),
		ContentType: "application/pdf",
		Data:        data,
	}, nil
}

func (m *MailSender) sendAdmin(ctx context.Context, r models.ExamResult, attachments []Attachment) error {
	msg, err := m.composer.Admin(r)
	if err != nil {
		return err
	}

	attachments = append([]Attachment{}, attachments...)
	if m.todayLog != nil {
		if path, ok := m.todayLog(); ok {
			data, err := os.ReadFile(path)
			if err != nil {
				logger.Error.Printf("Failed to read daily log for attachment: %v", err)
			} else {
				attachments = append(attachments, Attachment{
					Name:        filepath.Base(path),
					ContentType: "text/csv",
					Data:        data,
				})
			}
		}
	}

	return m.deliver(ctx, m.cfg.Admins, msg, attachments)
}

func (m *MailSender) deliver(ctx context.Context, to []string, msg Message, attachments []Attachment) error {
	mail, err := m.buildMessage(to, msg, attachments)
	if err != nil {
		return err
	}
	return m.send(ctx, mail)
}

// buildMessage renders a text+html alternative body with the given
// attachments.
func (m *MailSender) buildMessage(to []string, msg Message, attachments []Attachment) (*gomail.Msg, error) {
	mail := gomail.NewMsg()
	if err := mail.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := mail.ReplyTo(m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid reply-to address: %w", err)
	}
	if err := mail.To(to...); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	mail.Subject(msg.Subject)
	mail.SetDateWithValue(m.now())
	mail.SetMessageIDWithValue(uuid.NewString() + "@examportal")
	mail.SetBodyString(gomail.TypeTextPlain, msg.Text)
	mail.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)

	for _, a := range attachments {
		err := mail.AttachReader(a.Name, bytes.NewReader(a.Data),
			gomail.WithFileContentType(gomail.ContentType(a.ContentType)))
		if err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", a.Name, err)
		}
	}
	return mail, nil
}

func (m *MailSender) smtpSend(ctx context.Context, msg *gomail.Msg) error {
	opts := []gomail.Option{
		gomail.WithPort(m.cfg.port()),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.cfg.Username),
			gomail.WithPassword(m.cfg.Password),
		)
	}

	client, err := gomail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to configure smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}
