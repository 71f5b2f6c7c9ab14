// Package email sends the transactional emails of the platform over SMTP.
package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"gopkg.in/gomail.v2"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Links are URL patterns where {{token}} is replaced by the token value.
type Links struct {
	ActivationURL string
	RecoveryURL   string
}

type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	from   string
	links  Links
	sender Sender
}

func New(address, password, host string, port int, links Links) *Mailer {
	return &Mailer{
		from:   address,
		links:  links,
		sender: gomail.NewDialer(host, port, address, password),
	}
}

// NewWithSender is used when the transport is provided by the caller.
func NewWithSender(from string, links Links, sender Sender) *Mailer {
	return &Mailer{from: from, links: links, sender: sender}
}

func (m *Mailer) SendActivationToken(to, token string) error {
	data := map[string]string{"URL": tokenURL(m.links.ActivationURL, token), "Token": token}
	return m.send(to, "Activate your account", "activation.html", data)
}

func (m *Mailer) SendRecoveryToken(to, token string) error {
	data := map[string]string{"URL": tokenURL(m.links.RecoveryURL, token), "Token": token}
	return m.send(to, "Reset your password", "recovery.html", data)
}

// Receipt is the content of an order confirmation.
type Receipt struct {
	Name       string
	OrderID    string
	Total      string
	GrandTotal string
	Items      []string
}

func (m *Mailer) SendOrderConfirmation(to string, rc Receipt) error {
	return m.send(to, "Your order "+rc.OrderID, "order.html", rc)
}

func (m *Mailer) send(to, subject, tmpl string, data any) error {
	body, err := render(tmpl, data)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending %q to %s: %w", subject, to, err)
	}
	return nil
}

func render(tmpl string, data any) (string, error) {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, tmpl, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", tmpl, err)
	}
	return body.String(), nil
}

func tokenURL(pattern, token string) string {
	return strings.ReplaceAll(pattern, "{{token}}", token)
}
