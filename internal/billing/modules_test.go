package billing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prohelper/prohelper-web/internal/prohelper"
)

func newModulesServer(t *testing.T, activateStatus int) *prohelper.Client {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/lk/v1/billing/modules", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"success": true,
			"data": {
				"core": [{"id": 1, "slug": "projects", "is_active": true}],
				"addon": [{"id": 2, "slug": "crm-basic", "price": 990}]
			}
		}`))
	})
	mux.HandleFunc("/lk/v1/billing/modules/active", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"success": true,
			"data": [{"id": 11, "module_id": 2, "slug": "crm_basic", "status": "trial"}]
		}`))
	})
	mux.HandleFunc("/lk/v1/billing/modules/expiring", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success": true, "data": []}`))
	})
	mux.HandleFunc("/lk/v1/billing/balance", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success": true, "data": {"amount": 500, "currency": "RUB"}}`))
	})
	mux.HandleFunc("/lk/v1/billing/info", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"success": true,
			"data": {"balance": 500, "currency": "RUB", "monthly_cost": 1990, "next_charge_at": "2026-10-01"}
		}`))
	})
	mux.HandleFunc("/lk/v1/billing/modules/crm-basic/activate", func(w http.ResponseWriter, _ *http.Request) {
		if activateStatus != http.StatusOK {
			w.WriteHeader(activateStatus)
			return
		}

		_, _ = w.Write([]byte(`{"success": true, "data": {}}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return prohelper.New(server.URL, time.Second)
}

func TestModulesFetch(t *testing.T) {
	modules := NewModules(newModulesServer(t, http.StatusOK), staticToken("tok"))

	overview, err := modules.Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, overview.Catalog, 2)
	assert.Equal(t, "core", overview.Catalog[0].Category)
	require.Len(t, overview.Active, 1)
	assert.Empty(t, overview.Expiring)
	require.NotNil(t, overview.Balance)
	assert.Equal(t, float64(500), overview.Balance.Amount)
	require.NotNil(t, overview.Info)
	assert.Equal(t, float64(1990), overview.Info.MonthlyCost)
}

func TestModulesFetchFailsWhole(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/lk/v1/billing/balance":
			w.WriteHeader(http.StatusInternalServerError)
		case "/lk/v1/billing/info":
			_, _ = w.Write([]byte(`{"success": true, "data": {}}`))
		default:
			_, _ = w.Write([]byte(`{"success": true, "data": []}`))
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	modules := NewModules(prohelper.New(server.URL, time.Second), staticToken("tok"))

	_, err := modules.Fetch(context.Background())
	assert.ErrorContains(t, err, "balance")
}

func TestIsActivePrefersActivationRecords(t *testing.T) {
	modules := NewModules(newModulesServer(t, http.StatusOK), staticToken("tok"))

	overview, err := modules.Fetch(context.Background())
	require.NoError(t, err)

	// activation record says trial, which counts as active; both slug
	// spellings resolve to the same record
	assert.True(t, modules.IsActive("crm-basic", overview.Catalog))
	assert.True(t, modules.IsActive("crm_basic", overview.Catalog))

	// no activation record, the catalog flag decides
	assert.True(t, modules.IsActive("projects", overview.Catalog))
	assert.False(t, modules.IsActive("estimates", overview.Catalog))
}

func TestActivateInsufficientFunds(t *testing.T) {
	modules := NewModules(newModulesServer(t, http.StatusPaymentRequired), staticToken("tok"))

	result, err := modules.Activate(context.Background(), "crm-basic")
	require.NoError(t, err)

	assert.False(t, result.Activated)
	assert.True(t, result.InsufficientFunds)
	assert.NotEmpty(t, result.Message)
}

func TestActivateSuccess(t *testing.T) {
	modules := NewModules(newModulesServer(t, http.StatusOK), staticToken("tok"))

	result, err := modules.Activate(context.Background(), "crm-basic")
	require.NoError(t, err)

	assert.True(t, result.Activated)
	assert.False(t, result.InsufficientFunds)
}

func TestActivateServerError(t *testing.T) {
	modules := NewModules(newModulesServer(t, http.StatusInternalServerError), staticToken("tok"))

	_, err := modules.Activate(context.Background(), "crm-basic")
	assert.Error(t, err)
}
