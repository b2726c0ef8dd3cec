package notify

import (
	"fmt"
	"log"
	"strings"

	"gopkg.in/gomail.v2"
)

// EmailConfig is the SMTP delivery configuration for EmailService.
type EmailConfig struct {
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPassword  string
	FromAddress   string
	FromName      string
	DevMode       bool
	DevRecipients []string
}

// EmailService delivers rendered EmailMessages over SMTP via gomail. In dev
// mode, it only delivers to recipients that end with one of the configured
// development allowlist entries (a full address or a domain suffix such as
// "@example.com"), so a developer running against a real SMTP relay never
// spams real users.
type EmailService struct {
	cfg    EmailConfig
	dialer *gomail.Dialer
}

// NewEmailService builds an EmailService from cfg.
func NewEmailService(cfg EmailConfig) *EmailService {
	return &EmailService{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
	}
}

// Send delivers msg, applying the dev-mode recipient allowlist first. It
// returns nil without sending if the filtered recipient list is empty.
func (s *EmailService) Send(msg EmailMessage) error {
	if len(msg.To) == 0 {
		return nil
	}

	recipients := msg.To
	if s.cfg.DevMode {
		allowed := filterRecipients(msg.To, s.cfg.DevRecipients)
		blocked := len(msg.To) - len(allowed)
		if blocked > 0 {
			log.Printf("📧 dev mode: blocked %d email recipient(s) outside the dev allowlist", blocked)
		}
		if len(allowed) == 0 {
			log.Printf("📧 dev mode: no allowed recipients for subject %q, skipping send", msg.Subject)
			return nil
		}
		recipients = allowed
	}

	m := gomail.NewMessage()
	from := s.cfg.FromAddress
	if s.cfg.FromName != "" {
		from = m.FormatAddress(s.cfg.FromAddress, s.cfg.FromName)
	}
	m.SetHeader("From", from)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	log.Printf("📧 email sent recipients=%d subject=%q", len(recipients), msg.Subject)
	return nil
}

func filterRecipients(to []string, allowlist []string) []string {
	var out []string
	for _, email := range to {
		for _, suffix := range allowlist {
			if suffix != "" && strings.HasSuffix(email, suffix) {
				out = append(out, email)
				break
			}
		}
	}
	return out
}
