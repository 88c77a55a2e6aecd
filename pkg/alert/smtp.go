package alert

import (
	"context"

	"gopkg.in/gomail.v2"

	"github.com/flowboard-labs/flowboard/pkg/config"
)

type smtpSender struct {
	dialer *gomail.Dialer
	from   string
}

func newSMTPSender() *smtpSender {
	smtpConfig := config.GetConfig().SMTP
	return &smtpSender{
		dialer: gomail.NewDialer(smtpConfig.Host, smtpConfig.Port, smtpConfig.User, smtpConfig.Password),
		from:   smtpConfig.From,
	}
}

func (s *smtpSender) SendEmail(_ context.Context, to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return s.dialer.DialAndSend(m)
}
