// Package notify emails a plain-text digest of newly discovered listings.
package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/JakeFAU/jobwatch/internal/listing"
)

// DefaultSubject is used when Config.Subject is empty.
const DefaultSubject = "New Job Listings Available!"

const bodyIntro = "Here are the new job listings:\n\n"

var (
	// ErrNothingToSend is returned by Notify when there are no listings.
	ErrNothingToSend = errors.New("no listings to send")
	// ErrIncompleteConfig is returned when SMTP settings are missing.
	ErrIncompleteConfig = errors.New("incomplete mail configuration")
)

// Config holds the SMTP settings for the digest email.
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	Recipient string
	Subject   string
}

// Validate reports which required settings are missing.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Host) == "" {
		missing = append(missing, "host")
	}
	if c.Port <= 0 {
		missing = append(missing, "port")
	}
	if strings.TrimSpace(c.Username) == "" {
		missing = append(missing, "user")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if strings.TrimSpace(c.Recipient) == "" {
		missing = append(missing, "recipient")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteConfig, strings.Join(missing, ", "))
	}
	return nil
}

// Sender delivers a composed message.
type Sender interface {
	Send(ctx context.Context, m *gomail.Message) error
}

// Notifier implements crawler.Notifier.
type Notifier struct {
	cfg    Config
	sender Sender
	logger *zap.Logger
}

// New validates cfg and returns a Notifier that sends through SMTP.
func New(cfg Config, logger *zap.Logger) (*Notifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewWithSender(cfg, NewSMTPSender(cfg), logger)
}

// NewWithSender returns a Notifier using the given Sender.
func NewWithSender(cfg Config, sender Sender, logger *zap.Logger) (*Notifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{cfg: cfg, sender: sender, logger: logger.Named("notify")}, nil
}

// Notify sends one email listing every entry. It does not retry.
func (n *Notifier) Notify(ctx context.Context, listings []listing.Listing) error {
	if len(listings) == 0 {
		return ErrNothingToSend
	}
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", n.cfg.Recipient)
	m.SetHeader("Subject", n.cfg.Subject)
	m.SetBody("text/plain", Compose(listings))

	n.logger.Debug("Sending digest",
		zap.String("recipient", n.cfg.Recipient),
		zap.Int("listings", len(listings)),
	)
	if err := n.sender.Send(ctx, m); err != nil {
		return fmt.Errorf("send digest to %s: %w", n.cfg.Recipient, err)
	}
	return nil
}

// Compose renders the digest body. Missing fields print as listing.Sentinel.
func Compose(listings []listing.Listing) string {
	var b strings.Builder
	b.WriteString(bodyIntro)
	for _, l := range listings {
		fmt.Fprintf(&b, "Title: %s\nCategory: %s\nLocation: %s\nLink: %s\n\n",
			l.Title, l.Category, l.Location, l.Link)
	}
	return b.String()
}

// SMTPSender sends messages with a gomail dialer using STARTTLS.
type SMTPSender struct {
	dialer *gomail.Dialer
}

// NewSMTPSender builds a dialer for cfg.
func NewSMTPSender(cfg Config) *SMTPSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	return &SMTPSender{dialer: d}
}

// Send delivers m through the dialer. The dial itself cannot be
// interrupted, but Send returns as soon as ctx is done.
func (s *SMTPSender) Send(ctx context.Context, m *gomail.Message) error {
	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("email sending canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("dial and send: %w", err)
		}
		return nil
	}
}
