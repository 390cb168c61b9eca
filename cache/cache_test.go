package cache

import (
	"testing"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newTestCache(t *testing.T, ttl time.Duration) *Service {
	t.Helper()
	svc := Open("", ttl, cmtlog.NewNopLogger())
	require.True(t, svc.Enabled())
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestSetGetDelete(t *testing.T) {
	svc := newTestCache(t, time.Minute)

	svc.Set("k", payload{Name: "jig", Count: 3})

	var got payload
	require.True(t, svc.Get("k", &got))
	assert.Equal(t, "jig", got.Name)
	assert.Equal(t, 3, got.Count)

	svc.Delete("k")
	assert.False(t, svc.Get("k", &got), "deleted key is a miss")
}

func TestGet_MissOnUnknownKey(t *testing.T) {
	svc := newTestCache(t, time.Minute)
	var got payload
	assert.False(t, svc.Get("never-set", &got))
}

func TestTTLExpiry(t *testing.T) {
	svc := newTestCache(t, time.Second)

	svc.Set("k", payload{Name: "short-lived"})
	var got payload
	require.True(t, svc.Get("k", &got))

	time.Sleep(2 * time.Second)
	assert.False(t, svc.Get("k", &got), "expired entry is a miss")
}

func TestDisabledBackendDegrades(t *testing.T) {
	// Point the store at an unusable path: the service opens disabled and
	// every operation becomes a harmless no-op.
	svc := Open("/proc/nope/cache", time.Minute, cmtlog.NewNopLogger())
	assert.False(t, svc.Enabled())

	svc.Set("k", payload{Name: "ignored"})
	var got payload
	assert.False(t, svc.Get("k", &got))
	svc.Delete("k")
	assert.NoError(t, svc.Close())
}

func TestKeyHelpers(t *testing.T) {
	assert.Equal(t, "equipment:QR-1", JigKey("QR-1"))
	assert.Equal(t, "adapter:QR-1", AdapterKey("QR-1"))
}
