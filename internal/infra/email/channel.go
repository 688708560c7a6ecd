package email

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"

	"rental_expiry_monitor/internal/domain/notify"
	"rental_expiry_monitor/internal/infra/config"
)

const sslPort = 465

// Channel sends the long-form report over SMTP.
type Channel struct {
	client *mail.Client
	from   string
	to     []string
	logger *logrus.Entry
}

// NewChannel builds the SMTP client. Port 465 uses implicit TLS, any other port requires STARTTLS.
func NewChannel(cfg config.EmailConfig, logger *logrus.Entry) (*Channel, error) {
	if !cfg.Enabled {
		return nil, notify.ErrChannelDisabled
	}

	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTimeout(30 * time.Second),
	}
	if cfg.SMTPPort == sslPort {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	client, err := mail.NewClient(cfg.SMTPServer, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &Channel{client: client, from: from, to: cfg.To, logger: logger}, nil
}

func (c *Channel) Name() string {
	return "email"
}

func (c *Channel) Send(ctx context.Context, msg notify.Message) error {
	m, err := c.buildMessage(msg)
	if err != nil {
		return err
	}
	if err := c.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	c.logger.WithField("recipients", len(c.to)).Debug("Mail sent")
	return nil
}

func (c *Channel) buildMessage(msg notify.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(c.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", c.from, err)
	}
	if err := m.To(c.to...); err != nil {
		return nil, fmt.Errorf("invalid recipients: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	if msg.Attachment != "" {
		if _, err := os.Stat(msg.Attachment); err != nil {
			c.logger.WithError(err).WithField("attachment", msg.Attachment).Warn("Attachment not readable, sending without it")
		} else {
			m.AttachFile(msg.Attachment, mail.WithFileName(filepath.Base(msg.Attachment)))
		}
	}
	return m, nil
}
