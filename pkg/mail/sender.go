// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/telekom/notion-outreach/pkg/metrics"
)

// ErrSessionClosed is returned by Send after Close.
var ErrSessionClosed = errors.New("smtp session closed")

// Session is an authenticated SMTP connection reused for all sends of a run.
type Session interface {
	Send(m Message) error
	Close() error
}

// DialerConfig holds the SMTP account. Port 465 uses implicit TLS, other
// ports upgrade with STARTTLS when the server offers it. An empty Username
// skips authentication.
type DialerConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	InsecureSkipVerify bool
}

// Dialer opens SMTP sessions.
type Dialer struct {
	dialer *gomail.Dialer
	log    *zap.SugaredLogger
}

func NewDialer(cfg DialerConfig, log *zap.SugaredLogger) *Dialer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.InsecureSkipVerify {
		log.Warnw("TLS certificate verification disabled for SMTP", "host", cfg.Host)
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
	}
	return &Dialer{dialer: d, log: log.Named("mail")}
}

func (d *Dialer) Host() string {
	return d.dialer.Host
}

// Open connects and authenticates once.
func (d *Dialer) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sc, err := d.dialer.Dial()
	if err != nil {
		return nil, fmt.Errorf("opening smtp session to %s:%d: %w", d.dialer.Host, d.dialer.Port, err)
	}
	d.log.Infow("SMTP session opened", "host", d.dialer.Host, "port", d.dialer.Port, "ssl", d.dialer.SSL)
	return &session{dialer: d, conn: sc}, nil
}

// session transmits messages over one connection. A failed transmission can
// leave the SMTP dialogue mid-transaction, so the connection is marked dirty
// and replaced before the next message.
type session struct {
	dialer *Dialer
	conn   gomail.SendCloser
	dirty  bool
	closed bool
}

func (s *session) Send(m Message) error {
	gm, err := m.build()
	if err != nil {
		return err
	}
	if s.closed {
		return ErrSessionClosed
	}
	host := s.dialer.Host()

	if s.dirty {
		if err := s.redial(); err != nil {
			metrics.MailSendFailure.WithLabelValues(host).Inc()
			return err
		}
	}

	if err := gomail.Send(s.conn, gm); err != nil {
		s.dirty = true
		metrics.MailSendFailure.WithLabelValues(host).Inc()
		return fmt.Errorf("sending to %s: %w", m.To.Email, err)
	}
	metrics.MailSendSuccess.WithLabelValues(host).Inc()
	return nil
}

func (s *session) redial() error {
	_ = s.conn.Close()
	sc, err := s.dialer.dialer.Dial()
	if err != nil {
		return fmt.Errorf("reconnecting to %s: %w", s.dialer.Host(), err)
	}
	s.conn = sc
	s.dirty = false
	metrics.MailSessionRedials.WithLabelValues(s.dialer.Host()).Inc()
	s.dialer.log.Infow("SMTP session re-established after failed transmission", "host", s.dialer.Host())
	return nil
}

// Close ends the session with QUIT. It is safe to call more than once.
func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("closing smtp session: %w", err)
	}
	s.dialer.log.Debugw("SMTP session closed", "host", s.dialer.Host())
	return nil
}
