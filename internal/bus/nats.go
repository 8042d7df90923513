package bus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const (
	clientName     = "partnerd"
	handlerTimeout = 30 * time.Second
)

// Client is a NATS connection that speaks JSON and reports its connection
// state through logrus.
type Client struct {
	nc  *nats.Conn
	log logrus.FieldLogger
}

func Connect(url string, log logrus.FieldLogger) (*Client, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "nats")

	nc, err := nats.Connect(url, append(connOptions(log),
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)...)
	if err != nil {
		return nil, err
	}
	log.WithField("url", nc.ConnectedUrlRedacted()).Info("nats connected")
	return &Client{nc: nc, log: log}, nil
}

// connOptions wires connection lifecycle callbacks to log. Offers that
// arrive while disconnected are lost, so the gaps are worth a warning.
func connOptions(log logrus.FieldLogger) []nats.Option {
	return []nats.Option{
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("nats disconnected")
				return
			}
			log.Info("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithFields(logrus.Fields{
				"url":        nc.ConnectedUrlRedacted(),
				"reconnects": nc.Stats().Reconnects,
			}).Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Info("nats connection closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			e := log.WithError(err)
			if sub != nil {
				e = e.WithField("subject", sub.Subject)
			}
			e.Error("nats async error")
		}),
	}
}

// Close drains subscriptions before closing so in-flight offers finish.
func (c *Client) Close() {
	if c.nc != nil {
		if err := c.nc.Drain(); err != nil {
			c.log.WithError(err).Warn("nats drain")
		}
	}
}

func (c *Client) PublishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.nc.Publish(subject, b)
}

// SubscribeJSON calls handler for every message on subject with a context
// bounded by handlerTimeout.
func (c *Client) SubscribeJSON(subject string, handler func(ctx context.Context, data []byte)) (*nats.Subscription, error) {
	return c.nc.Subscribe(subject, func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		handler(ctx, msg.Data)
	})
}
