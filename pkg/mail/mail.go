package mail

import (
	"crypto/tls"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/yourusername/menu-generator/pkg/model"
	"gopkg.in/gomail.v2"
)

// ErrNotConfigured is returned when SMTP host, sender or recipients are missing
var ErrNotConfigured = errors.New("smtp not configured")

// Mailer delivers rendered images over SMTP
type Mailer struct {
	config model.SMTPConfig
	send   func(m ...*gomail.Message) error
}

// NewMailer creates a mailer for the given SMTP settings
func NewMailer(config model.SMTPConfig) *Mailer {
	dialer := newDialer(config)
	return &Mailer{
		config: config,
		send:   dialer.DialAndSend,
	}
}

func newDialer(config model.SMTPConfig) *gomail.Dialer {
	dialer := gomail.NewDialer(config.Host, config.Port, config.Username, config.Password)

	// Configure TLS
	if config.UseTLS {
		dialer.TLSConfig = &tls.Config{
			InsecureSkipVerify: config.SkipTLSVerify,
			ServerName:         config.Host,
		}
	} else {
		dialer.TLSConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
		dialer.SSL = false
	}
	return dialer
}

// Ping opens and closes a connection to the SMTP server
func (m *Mailer) Ping() error {
	closer, err := newDialer(m.config).Dial()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server %s:%d: %w", m.config.Host, m.config.Port, err)
	}
	return closer.Close()
}

// SendImage mails the image at imagePath to the configured recipients.
// vars fill {{key}} placeholders in the subject and body.
func (m *Mailer) SendImage(imagePath string, vars map[string]string) error {
	msg, err := m.buildMessage(imagePath, vars)
	if err != nil {
		return err
	}
	if err := m.send(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (m *Mailer) buildMessage(imagePath string, vars map[string]string) (*gomail.Message, error) {
	if m.config.Host == "" || m.config.From == "" || len(m.config.To) == 0 {
		return nil, ErrNotConfigured
	}
	if err := model.ValidateRecipientDomains(m.config.To, m.config.AllowedDomains); err != nil {
		return nil, err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.config.From)
	msg.SetHeader("To", m.config.To...)
	msg.SetHeader("Subject", InterpolateTemplate(m.config.Subject, vars))
	msg.SetBody("text/plain", InterpolateTemplate(m.config.Body, vars))
	msg.Attach(imagePath, gomail.Rename(filepath.Base(imagePath)), gomail.SetHeader(map[string][]string{
		"Content-Type": {"image/png"},
	}))
	return msg, nil
}

// InterpolateTemplate replaces {{key}} (and {{ key }}) placeholders with values from vars.
// Unknown placeholders are left as they are.
func InterpolateTemplate(s string, vars map[string]string) string {
	for key, value := range vars {
		s = strings.ReplaceAll(s, "{{"+key+"}}", value)
		s = strings.ReplaceAll(s, "{{ "+key+" }}", value)
	}
	return s
}
