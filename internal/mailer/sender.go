package mailer

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

// ErrNoRecipient means a sender has no address for the digest's user.
var ErrNoRecipient = errors.New("digest has no recipient for this channel")

type Sender interface {
	Send(ctx context.Context, d Digest) error
}

// MultiSender delivers through every sender that has a recipient for the digest.
type MultiSender []Sender

func (m MultiSender) Send(ctx context.Context, d Digest) error {
	var errs []error
	delivered := false
	for _, s := range m {
		err := s.Send(ctx, d)
		switch {
		case err == nil:
			delivered = true
		case errors.Is(err, ErrNoRecipient):
		default:
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if !delivered {
		return ErrNoRecipient
	}
	return nil
}

// LogSender writes digests to the log instead of delivering them.
type LogSender struct {
	Log log.FieldLogger
}

func (s LogSender) Send(_ context.Context, d Digest) error {
	s.Log.WithFields(log.Fields{
		"digest_id": d.ID,
		"rule_id":   d.RuleID,
		"user_id":   d.UserID,
		"tasks":     len(d.Tasks),
	}).Info(d.Subject)
	return nil
}
