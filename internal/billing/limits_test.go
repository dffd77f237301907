package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prohelper/prohelper-web/internal/prohelper"
)

const limitsPayload = `{
	"success": true,
	"data": {
		"has_subscription": true,
		"limits": {
			"projects": {"used": 10, "limit": 10, "remaining": 0, "percentage_used": 100, "status": "exceeded"},
			"users": {"used": 8, "limit": 10, "remaining": 2, "percentage_used": 80, "status": "warning"},
			"storage": {"used": 1, "limit": 0, "remaining": 0, "is_unlimited": true, "status": "ok"}
		},
		"warnings": [
			{"type": "projects", "level": "critical", "message": "project limit reached"},
			{"type": "users", "level": "warning", "message": "user limit at 80%"}
		],
		"upgrade_required": true
	}
}`

func staticToken(token string) TokenFunc {
	return func(context.Context) (string, error) {
		return token, nil
	}
}

func newLimitsServer(t *testing.T, payload string) (*prohelper.Client, *atomic.Int64) {
	t.Helper()

	var calls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(server.Close)

	return prohelper.New(server.URL, time.Second), &calls
}

func TestLimitsRefresh(t *testing.T) {
	client, _ := newLimitsServer(t, limitsPayload)
	limits := NewLimits(client, staticToken("tok"))

	require.Nil(t, limits.Current())
	assert.False(t, limits.NeedsUpgrade())

	report, err := limits.Refresh(context.Background())
	require.NoError(t, err)

	assert.True(t, report.HasSubscription)
	assert.True(t, limits.NeedsUpgrade())

	exceeded := limits.Exceeded()
	require.Len(t, exceeded, 1)
	assert.Contains(t, exceeded, "projects")

	warnings := limits.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings, "users")
}

func TestLimitsWarningCallbacksFireEveryRefresh(t *testing.T) {
	client, _ := newLimitsServer(t, limitsPayload)
	limits := NewLimits(client, staticToken("tok"))

	var (
		mu       sync.Mutex
		received []prohelper.Warning
	)

	limits.OnWarning(func(w prohelper.Warning) {
		mu.Lock()
		received = append(received, w)
		mu.Unlock()
	})

	_, err := limits.Refresh(context.Background())
	require.NoError(t, err)

	// identical report, callbacks still fire
	_, err = limits.Refresh(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, received, 4)
}

func TestLimitsCanCreate(t *testing.T) {
	client, _ := newLimitsServer(t, limitsPayload)
	limits := NewLimits(client, staticToken("tok"))

	// fail closed before the first refresh
	assert.False(t, limits.CanCreate("projects"))

	_, err := limits.Refresh(context.Background())
	require.NoError(t, err)

	assert.False(t, limits.CanCreate("projects"))
	assert.True(t, limits.CanCreate("users"))
	assert.True(t, limits.CanCreate("storage"))
	assert.True(t, limits.CanCreate("unknown-resource"))
}

func TestLimitsNeedsUpgradeComesFromServerOnly(t *testing.T) {
	// every limit exceeded but the server did not flag an upgrade
	payload := `{
		"success": true,
		"data": {
			"has_subscription": true,
			"limits": {"projects": {"used": 10, "limit": 10, "remaining": 0, "status": "exceeded"}},
			"upgrade_required": false
		}
	}`

	client, _ := newLimitsServer(t, payload)
	limits := NewLimits(client, staticToken("tok"))

	_, err := limits.Refresh(context.Background())
	require.NoError(t, err)

	assert.Len(t, limits.Exceeded(), 1)
	assert.False(t, limits.NeedsUpgrade())
}
