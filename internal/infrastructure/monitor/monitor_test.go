package monitor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fastygo/storefront-guard/internal/config"
	boltinfra "github.com/fastygo/storefront-guard/internal/infrastructure/bolt"
	"github.com/fastygo/storefront-guard/internal/scheduler"
	"github.com/fastygo/storefront-guard/usecase/security"
)

type staticChecker bool

func (c staticChecker) HasCredential(context.Context) bool { return bool(c) }

func TestEnvironmentProbe_Signals(t *testing.T) {
	tests := []struct {
		name      string
		origin    string
		resources []string
		creds     CredentialChecker
		want      security.Signals
	}{
		{
			name:   "secure with credential",
			origin: "https://shop.example.com",
			creds:  staticChecker(true),
			want:   security.Signals{TransportSecure: true, CredentialPresent: true},
		},
		{
			name:   "plain http",
			origin: "http://shop.example.com",
			creds:  staticChecker(true),
			want:   security.Signals{CredentialPresent: true},
		},
		{
			name:      "mixed content",
			origin:    "https://shop.example.com",
			resources: []string{"/static/app.js", "http://cdn.example.com/lib.js"},
			want:      security.Signals{TransportSecure: true, MixedContent: true},
		},
		{
			name:      "insecure socket under secure page",
			origin:    "https://shop.example.com",
			resources: []string{"ws://shop.example.com/ws"},
			want:      security.Signals{TransportSecure: true, MixedContent: true},
		},
		{
			name:      "insecure page never reports mixed content",
			origin:    "http://shop.example.com",
			resources: []string{"http://cdn.example.com/lib.js"},
			want:      security.Signals{},
		},
		{
			name:   "unparsable origin",
			origin: "://",
			want:   security.Signals{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe := NewEnvironmentProbe(tt.origin, tt.resources, tt.creds)
			assert.Equal(t, tt.want, probe.Signals(context.Background()))
		})
	}
}

func TestHealth(t *testing.T) {
	db, err := boltinfra.Open(config.StorageConfig{CredentialsPath: filepath.Join(t.TempDir(), "c.db")}, "credentials")
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	sched := scheduler.NewManual(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	h := NewHealth(client, db, sched, 10*time.Second, zaptest.NewLogger(t))
	h.Start()
	t.Cleanup(h.Stop)

	assert.True(t, h.IsOnline())
	assert.True(t, h.Status().Redis)

	mr.Close()
	require.NoError(t, db.Close())
	sched.Advance(10 * time.Second)

	status := h.Status()
	assert.False(t, status.Redis)
	assert.False(t, status.Storage)
	assert.Equal(t, sched.Now(), status.LastCheck)
	assert.False(t, h.IsOnline())

	h.Stop()
	assert.Zero(t, sched.Pending())
}

func TestHealth_WithoutRedis(t *testing.T) {
	db, err := boltinfra.Open(config.StorageConfig{CredentialsPath: filepath.Join(t.TempDir(), "c.db")}, "credentials")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := NewHealth(nil, db, scheduler.NewManual(time.Now()), 0, nil)
	h.Refresh()
	assert.True(t, h.IsOnline())
	assert.False(t, h.Status().RedisEnabled)
}
