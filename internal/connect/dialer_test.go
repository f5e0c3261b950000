package connect

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvoss/relay/internal/domain"
)

type stubSession struct{}

func (stubSession) Next() error     { return nil }
func (stubSession) Previous() error { return nil }
func (stubSession) Pause() error    { return nil }
func (stubSession) Play() error     { return nil }
func (stubSession) Close() error    { return nil }

func (stubSession) Lyrics(ctx context.Context, id domain.TrackID) (*domain.Lyrics, error) {
	return nil, ErrLyricsNotFound
}

type flakyConnector struct {
	attempts int
	failures int
	err      error
}

func (f *flakyConnector) Connect(ctx context.Context, creds Credentials, deviceName string, sink AudioSink, events chan<- Event) (Session, error) {
	f.attempts++
	if f.attempts <= f.failures {
		return nil, f.err
	}
	return stubSession{}, nil
}

func TestDialerRetriesTransientFailures(t *testing.T) {
	inner := &flakyConnector{failures: 2, err: &TransientError{Err: errors.New("connection reset")}}
	d := NewDialer(inner, 3)

	session, err := d.Connect(context.Background(), Credentials{}, "dev", nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, session)
	assert.Equal(t, 3, inner.attempts)
}

func TestDialerGivesUpAfterMaxRetries(t *testing.T) {
	inner := &flakyConnector{failures: 10, err: errors.New("connection reset")}
	d := NewDialer(inner, 2)

	_, err := d.Connect(context.Background(), Credentials{}, "dev", nil, nil)
	require.Error(t, err)
	assert.Equal(t, 3, inner.attempts, "initial attempt plus two retries")
}

func TestDialerDoesNotRetryAuthErrors(t *testing.T) {
	inner := &flakyConnector{failures: 10, err: &AuthError{Reason: "invalid token"}}
	d := NewDialer(inner, 3)

	_, err := d.Connect(context.Background(), Credentials{}, "dev", nil, nil)

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, 1, inner.attempts, "auth failures are permanent")
}
