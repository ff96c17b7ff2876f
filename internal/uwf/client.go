// Package uwf queries the Unified Write Filter management classes of a host
// and aggregates them into property stores.
package uwf

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhdewitt/uwfmon/internal/cim"
)

const (
	DefaultSessionTimeout   = 2 * time.Minute
	DefaultOperationTimeout = 1 * time.Minute
	DefaultWorkers          = 8
)

// Client runs UWF queries through a cim.Dialer. A Client is safe for concurrent use.
type Client struct {
	dialer           cim.Dialer
	log              logrus.FieldLogger
	sessionTimeout   time.Duration
	operationTimeout time.Duration
	workers          int

	last LastError
}

type Option func(*Client)

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) { c.log = log }
}

// WithSessionTimeout bounds every management session.
func WithSessionTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.sessionTimeout = d
		}
	}
}

// WithOperationTimeout bounds the completion wait of an action.
func WithOperationTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.operationTimeout = d
		}
	}
}

// WithWorkers caps how many queries Collect runs at once.
func WithWorkers(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.workers = n
		}
	}
}

func New(dialer cim.Dialer, opts ...Option) *Client {
	c := &Client{
		dialer:           dialer,
		log:              logrus.StandardLogger(),
		sessionTimeout:   DefaultSessionTimeout,
		operationTimeout: DefaultOperationTimeout,
		workers:          DefaultWorkers,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LastError returns the most recent code recorded by any call on c.
func (c *Client) LastError() ErrorCode {
	return c.last.Load()
}

func (c *Client) dial(ctx context.Context, host string) (cim.Session, error) {
	return c.dialer.Dial(ctx, host, cim.SessionOptions{Timeout: c.sessionTimeout})
}

func hostLabel(host string) string {
	if host == "" {
		return "localhost"
	}
	return host
}
