package mail

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/peopledeskhq/peopledesk/pkg/metrics"
)

// Dispatcher sends messages on a detached goroutine. Delivery failures are
// logged and counted but never reported back to the request that queued the
// message.
type Dispatcher struct {
	mailer  Mailer
	log     *zap.Logger
	timeout time.Duration
}

// NewDispatcher wraps a mailer with fire-and-forget dispatch semantics.
func NewDispatcher(mailer Mailer, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		mailer:  mailer,
		log:     log,
		timeout: 30 * time.Second,
	}
}

// Dispatch queues the message for asynchronous delivery and returns immediately.
func (d *Dispatcher) Dispatch(msg Message) {
	if d == nil || d.mailer == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.mailer.Send(ctx, msg); err != nil {
			metrics.MailDispatches.WithLabelValues("failed").Inc()
			d.log.Warn("mail delivery failed",
				zap.String("to", msg.To),
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
			return
		}
		metrics.MailDispatches.WithLabelValues("sent").Inc()
	}()
}

// LogMailer records outbound messages without delivering them. It stands in
// for a real relay in development and when SMTP is disabled.
type LogMailer struct {
	log *zap.Logger
}

// NewLogMailer builds a mailer that only logs messages.
func NewLogMailer(log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{log: log}
}

// Send logs the message and reports success.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.log.Info("outbound mail",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
