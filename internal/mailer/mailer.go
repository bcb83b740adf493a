package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sirupsen/logrus"
)

// SMTPMailer sends transactional mail through a plain SMTP relay. It covers
// account verification, password recovery, and relaying messages from users
// to the support mailbox.
type SMTPMailer struct {
	host           string
	port           int
	username       string
	password       string
	supportAddress string
	logger         *logrus.Logger
}

func NewSMTPMailer(host string, port int, username, password, supportAddress string, logger *logrus.Logger) *SMTPMailer {
	return &SMTPMailer{
		host:           host,
		port:           port,
		username:       username,
		password:       password,
		supportAddress: supportAddress,
		logger:         logger,
	}
}

func (m *SMTPMailer) SendVerificationCode(to, code string) error {
	body := fmt.Sprintf(
		"<p>Welcome to Rose Gold Market!</p><p>Enter this code in the app to verify your account:</p><h2>%s</h2>",
		code,
	)
	return m.send(m.supportAddress, to, "Verify your account", body, true)
}

func (m *SMTPMailer) SendPasswordResetCode(to, code string) error {
	body := fmt.Sprintf(
		"<p>We received a request to reset your password.</p><p>Your recovery code is:</p><h2>%s</h2><p>If this wasn't you, you can ignore this email.</p>",
		code,
	)
	return m.send(m.supportAddress, to, "Password recovery", body, true)
}

func (m *SMTPMailer) RelaySupportMessage(from, subject, body string) error {
	return m.send(from, m.supportAddress, subject, body, false)
}

func (m *SMTPMailer) send(from, to, subject, body string, html bool) error {
	contentType := "text/plain"
	if html {
		contentType = "text/html"
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: \"Rose Gold Market\" <%s>\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\nContent-Type: %s; charset=\"UTF-8\"\r\n\r\n", contentType)
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	auth := smtp.PlainAuth("", m.username, m.password, m.host)

	if err := smtp.SendMail(addr, auth, from, []string{to}, []byte(msg.String())); err != nil {
		m.logger.WithFields(logrus.Fields{
			"to":      to,
			"subject": subject,
		}).WithError(err).Error("Failed to send email")
		return err
	}

	return nil
}
