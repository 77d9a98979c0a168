package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"eventpass/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewNotifier_NoopProvider(t *testing.T) {
	n, err := NewNotifier(Config{Provider: "noop"}, testLogger())
	require.NoError(t, err)

	assert.NoError(t, n.NotifyRegistration(context.Background(), domain.RegistrationNotice{
		EventID:  "ev-1",
		TicketID: "t-1",
	}))
	assert.NoError(t, n.Close())
}

func TestNewNotifier_UnknownProviderFallsBackToNoop(t *testing.T) {
	n, err := NewNotifier(Config{Provider: "carrier-pigeon"}, testLogger())
	require.NoError(t, err)

	assert.NoError(t, n.NotifyRegistration(context.Background(), domain.RegistrationNotice{EventID: "ev-1"}))
}
