package service

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
	"gopkg.in/gomail.v2"
)

// Mailer sends account mail over SMTP. A disabled mailer accepts every
// message and sends nothing.
type Mailer struct {
	enabled bool
	from    string
	dialer  *gomail.Dialer
}

// NewMailer builds a mailer from the mail.* config keys
func NewMailer() *Mailer {
	m := &Mailer{
		enabled: viper.GetBool("mail.enabled"),
		from:    viper.GetString("mail.sender"),
	}

	if m.enabled {
		m.dialer = gomail.NewDialer(
			viper.GetString("mail.host"),
			viper.GetInt("mail.port"),
			m.from,
			viper.GetString("mail.password"),
		)
	}

	return m
}

func (m *Mailer) Enabled() bool {
	return m != nil && m.enabled
}

func welcomeMessage(from, to string, credits int) (*gomail.Message, error) {
	if to == "" || to == from {
		return nil, errors.New("invalid email address")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Welcome to Clipper")
	msg.SetBody("text/html", fmt.Sprintf(
		"Your account is ready. You have <b>%d</b> free credits, one credit is spent per generated clip.<br><br>Upload a video from your dashboard to get started.",
		credits,
	))

	return msg, nil
}

// SendWelcome greets a new user and tells them their starting balance
func (m *Mailer) SendWelcome(to string, credits int) error {
	if !m.Enabled() {
		return nil
	}

	msg, err := welcomeMessage(m.from, to, credits)
	if err != nil {
		return err
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send welcome mail, %w", err)
	}

	return nil
}
