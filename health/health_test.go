package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "connection refused", "connection refused"},
		{"ip and port", "dial tcp 10.0.0.7:5432: connection refused", "dial tcp [IP][PORT]: connection refused"},
		{"nats url", "cannot reach nats://user:pw@broker:4222", "cannot reach [URL]"},
		{"http url", "GET https://backend.example.com/tenants failed", "GET [URL] failed"},
		{"dsn", "open postgres://sitekit:hunter2@db/sitekit", "open [DSN]"},
		{"path", "open /var/lib/sitekit/seed.json: no such file", "open [PATH]: no such file"},
		{"credential", "auth failed token=abc123", "auth failed [REDACTED]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeErrorMessage(tt.input))
		})
	}
}

func TestFromError(t *testing.T) {
	ok := FromError("storage", nil)
	assert.True(t, ok.IsHealthy())
	assert.True(t, ok.Healthy)
	assert.Equal(t, "storage", ok.Component)

	bad := FromError("storage", errors.New("dial tcp 10.1.2.3:3306: timeout"))
	assert.True(t, bad.IsUnhealthy())
	assert.False(t, bad.Healthy)
	assert.NotContains(t, bad.Message, "10.1.2.3")
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name string
		subs []Status
		want string
	}{
		{"no checks", nil, StateHealthy},
		{"all healthy", []Status{NewHealthy("a", ""), NewHealthy("b", "")}, StateHealthy},
		{"degraded", []Status{NewHealthy("a", ""), NewDegraded("b", "")}, StateDegraded},
		{"unhealthy wins", []Status{NewDegraded("a", ""), NewUnhealthy("b", "")}, StateUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate("sitekit", tt.subs)
			assert.Equal(t, tt.want, got.Status)
			assert.Len(t, got.SubStatuses, len(tt.subs))
		})
	}
}

func TestChecker_Run(t *testing.T) {
	c := NewChecker(50 * time.Millisecond)
	c.Add("storage", PingCheck(func(context.Context) error { return nil }))
	c.Add("nats", ConnectedCheck(func() bool { return false }))
	c.Add("slow", func(ctx context.Context) Status {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return NewHealthy("", "late")
	})

	assert.Equal(t, []string{"nats", "slow", "storage"}, c.Names())

	status := c.Run(context.Background(), "sitekit")
	assert.True(t, status.IsUnhealthy())
	require.Len(t, status.SubStatuses, 3)

	byName := map[string]Status{}
	for _, s := range status.SubStatuses {
		byName[s.Component] = s
	}
	assert.True(t, byName["storage"].IsHealthy())
	assert.True(t, byName["nats"].IsUnhealthy())
	assert.Equal(t, "Check timed out", byName["slow"].Message)

	last, ok := c.Last("storage")
	require.True(t, ok)
	assert.True(t, last.IsHealthy())

	c.Remove("slow")
	c.Remove("nats")
	_, ok = c.Last("nats")
	assert.False(t, ok)
	assert.True(t, c.Run(context.Background(), "sitekit").IsHealthy())
}
