package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// EmailChannel delivers messages over SMTP with implicit TLS (port 465
// style). One message goes to all configured recipients.
type EmailChannel struct {
	Host       string
	Port       int
	Sender     string
	Password   string
	Recipients []string
}

func (c *EmailChannel) Name() string { return "email" }

// Send connects, authenticates and submits the message. The context
// deadline bounds the whole exchange via the connection deadline.
func (c *EmailChannel) Send(ctx context.Context, msg Message) error {
	if len(c.Recipients) == 0 {
		return fmt.Errorf("email: no recipients configured")
	}

	addr := fmt.Sprintf("%s:%d", c.Host, c.Port)

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config:    &tls.Config{ServerName: c.Host},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("email: dial %s: %w", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, c.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("email: smtp handshake: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", c.Sender, c.Password, c.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("email: auth: %w", err)
	}

	if err := client.Mail(c.Sender); err != nil {
		return fmt.Errorf("email: mail from: %w", err)
	}
	for _, rcpt := range c.Recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("email: rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("email: data: %w", err)
	}
	if _, err := w.Write(buildMIME(c.Sender, c.Recipients, msg)); err != nil {
		return fmt.Errorf("email: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("email: close body: %w", err)
	}

	return client.Quit()
}

func buildMIME(sender string, recipients []string, msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", sender)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}
