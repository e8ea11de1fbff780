package mailer

import (
	"fmt"

	"github.com/openbrgy/portal/internal/config"
	mail "github.com/wneessen/go-mail"
)

// Mailer sends status emails over SMTP. When no SMTP host is configured it
// becomes a no-op so local and test setups run without a mail server.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func New(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
	}
}

// Enabled reports whether the mailer has an SMTP host to talk to.
func (m *Mailer) Enabled() bool {
	return m != nil && m.host != ""
}

// SendStatusUpdate emails the requester about a document request transition.
// Callers treat failures as dependency errors and never fail the transition.
func (m *Mailer) SendStatusUpdate(to, name, requestType, status, documentNumber, remarks string) error {
	if !m.Enabled() || to == "" {
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mail to: %w", err)
	}
	msg.Subject(fmt.Sprintf("Your %s request is %s", requestType, status))

	body := fmt.Sprintf("Good day %s,\n\nYour request for %s is now %s.", name, requestType, status)
	if documentNumber != "" {
		body += fmt.Sprintf("\nDocument number: %s", documentNumber)
	}
	if remarks != "" {
		body += fmt.Sprintf("\nRemarks: %s", remarks)
	}
	body += "\n\nYou may claim your document at the barangay hall during office hours.\n"
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{mail.WithPort(m.port)}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password),
		)
	}
	client, err := mail.NewClient(m.host, opts...)
	if err != nil {
		return fmt.Errorf("mail client: %w", err)
	}
	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
