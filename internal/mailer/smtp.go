package mailer

import (
	"context"
	"fmt"
	"net"

	"github.com/wneessen/go-mail"

	"taskpulse/internal/config"
)

// SMTPSender delivers digests as multipart email.
type SMTPSender struct {
	client *mail.Client
	from   string
}

func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithDialContextFunc(dialWithDeadline),
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From}, nil
}

func (s *SMTPSender) Send(ctx context.Context, d Digest) error {
	if d.To == "" {
		return ErrNoRecipient
	}
	msg, err := s.message(d)
	if err != nil {
		return fmt.Errorf("build digest %s: %w", d.ID, err)
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send digest %s to %s: %w", d.ID, d.To, err)
	}
	return nil
}

func (s *SMTPSender) message(d Digest) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, err
	}
	if d.Name != "" {
		if err := msg.AddToFormat(d.Name, d.To); err != nil {
			return nil, err
		}
	} else if err := msg.To(d.To); err != nil {
		return nil, err
	}
	msg.Subject(d.Subject)
	msg.SetMessageIDWithValue(d.ID + "@taskpulse")
	if d.CreatedAt.IsZero() {
		msg.SetDate()
	} else {
		msg.SetDateWithValue(d.CreatedAt)
	}
	msg.SetBodyString(mail.TypeTextPlain, d.Text())
	msg.AddAlternativeString(mail.TypeTextHTML, "<pre>"+d.HTML()+"</pre>")
	return msg, nil
}

// dialWithDeadline applies the dial context deadline to the whole SMTP
// session, so a server that stops answering cannot hold the worker.
func dialWithDeadline(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}
