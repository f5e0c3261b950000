package connect

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRetries  = 3
	retryInterval   = 500 * time.Millisecond
	maxRetryElapsed = 15 * time.Second
)

// Dialer wraps a Connector with bounded retries and short backoff.
// Auth errors are permanent and returned without retrying.
type Dialer struct {
	inner   Connector
	retries uint64
}

func NewDialer(inner Connector, retries int) *Dialer {
	if retries <= 0 {
		retries = DefaultRetries
	}
	return &Dialer{inner: inner, retries: uint64(retries)}
}

func (d *Dialer) Connect(ctx context.Context, creds Credentials, deviceName string, sink AudioSink, events chan<- Event) (Session, error) {
	var session Session

	op := func() error {
		s, err := d.inner.Connect(ctx, creds, deviceName, sink, events)
		if err != nil {
			var authErr *AuthError
			if errors.As(err, &authErr) {
				return backoff.Permanent(err)
			}
			log.Warn().Err(err).Str("module", "connect.dialer").Msg("connect attempt failed, retrying")
			return err
		}
		session = s
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInterval
	bo.MaxElapsedTime = maxRetryElapsed

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, d.retries), ctx))
	if err != nil {
		return nil, err
	}
	return session, nil
}
