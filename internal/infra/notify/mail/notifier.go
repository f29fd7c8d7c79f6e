// Package mail sends export completion notices over SMTP.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/gomail.v2"

	"crmcore/internal/export"
)

// Sender delivers composed messages. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SendFunc adapts a function to Sender.
type SendFunc func(m ...*gomail.Message) error

// DialAndSend implements Sender.
func (f SendFunc) DialAndSend(m ...*gomail.Message) error { return f(m...) }

var _ export.Notifier = (*Notifier)(nil)

var body = template.Must(template.New("export").Parse(`Export {{.ID}} of {{.Kind}} {{.Status}}.
{{if .Error}}
Error: {{.Error}}
{{else}}
Rows: {{.Rows}}
{{range .Artifacts}}
- {{.Format}}: {{.Key}} ({{.Size}} bytes){{if .URL}}
  {{.URL}}{{end}}{{end}}
{{end}}`))

// Notifier emails a summary of every finished export.
type Notifier struct {
	sender Sender
	from   string
	to     []string
}

// New builds a notifier that delivers through the SMTP server at host:port.
func New(host string, port int, user, password, from string, to []string) *Notifier {
	return NewWithSender(gomail.NewDialer(host, port, user, password), from, to)
}

// NewWithSender builds a notifier around an existing sender.
func NewWithSender(sender Sender, from string, to []string) *Notifier {
	return &Notifier{sender: sender, from: from, to: append([]string(nil), to...)}
}

// ExportFinished implements export.Notifier.
func (n *Notifier) ExportFinished(ctx context.Context, job export.Job) error {
	if len(n.to) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := n.compose(job)
	if err != nil {
		return err
	}
	if err := n.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("send export notice: %w", err)
	}
	return nil
}

func (n *Notifier) compose(job export.Job) (*gomail.Message, error) {
	var text bytes.Buffer
	if err := body.Execute(&text, job); err != nil {
		return nil, fmt.Errorf("render export notice: %w", err)
	}
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", n.to...)
	m.SetHeader("Subject", fmt.Sprintf("[crmcore] %s export %s", job.Kind, strings.ToUpper(string(job.Status))))
	m.SetBody("text/plain", text.String())
	return m, nil
}
