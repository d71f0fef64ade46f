package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/errs"
	"hardcore/internal/ports"
)

type publisher interface {
	Publish(subject string, data []byte) error
}

type envelope struct {
	Origin       string             `json:"origin"`
	Notification ports.Notification `json:"notification"`
}

// NatsNotifier relays notifications to the other hosts sharing the store,
// so a participant hears about a reset issued from a different host.
type NatsNotifier struct {
	conn    *nats.Conn
	pub     publisher
	subject string
	origin  string
}

func Connect(ctx context.Context, url string, subject string) (*NatsNotifier, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if url == "" {
		return nil, errors.New("nats url is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "infrastructure.notify"))
	conn, err := nats.Connect(
		url,
		nats.Name("hardcore"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn(logCtx, "nats disconnected", slog.Any("err", errs.Loggable(err)))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logging.Info(logCtx, "nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, errs.Wrapf(err, "connect nats %s", url)
	}

	logging.Info(logCtx, "nats connected", slog.String("url", conn.ConnectedUrl()), slog.String("subject", subject))
	n := newNatsNotifier(conn, subject)
	n.conn = conn
	return n, nil
}

func newNatsNotifier(pub publisher, subject string) *NatsNotifier {
	return &NatsNotifier{pub: pub, subject: subject, origin: uuid.NewString()}
}

func (n *NatsNotifier) Notify(_ context.Context, msg ports.Notification) error {
	data, err := json.Marshal(envelope{Origin: n.origin, Notification: msg})
	if err != nil {
		return errs.Wrap(err, "encode notification")
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return errs.Wrap(err, "publish notification")
	}
	return nil
}

// Relay subscribes to the shared subject and hands notifications published
// by other hosts to local.
func (n *NatsNotifier) Relay(ctx context.Context, local ports.Notifier) (*nats.Subscription, error) {
	if n.conn == nil {
		return nil, errors.New("nats connection is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "infrastructure.notify"))
	sub, err := n.conn.Subscribe(n.subject, func(m *nats.Msg) {
		n.deliver(logCtx, m.Data, local)
	})
	if err != nil {
		return nil, errs.Wrapf(err, "subscribe %s", n.subject)
	}
	return sub, nil
}

func (n *NatsNotifier) deliver(ctx context.Context, data []byte, local ports.Notifier) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logging.Warn(ctx, "discard malformed relayed notification", slog.Any("err", errs.Loggable(err)))
		return
	}
	if env.Origin == n.origin {
		return
	}
	if err := local.Notify(ctx, env.Notification); err != nil {
		logging.Warn(ctx, "relay notification failed", slog.Any("err", errs.Loggable(err)))
	}
}

func (n *NatsNotifier) Close() {
	if n.conn == nil {
		return
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
	}
}
