package ledger_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/satgate/satgate-core/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileIsZeroSpend(t *testing.T) {
	store := ledger.OpenStore(filepath.Join(t.TempDir(), "ledger.json"))

	led, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(0), led.TotalSpent)
	assert.Empty(t, led.Payments)
}

func TestAppendAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	store := ledger.OpenStore(path)

	first := ledger.Payment{
		Amount:       10,
		Fee:          1,
		TotalCost:    11,
		SecretPrefix: "deadbeef",
		Memo:         "satgate premium",
		Timestamp:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Append(first))

	second := ledger.Payment{
		Amount:    50,
		Fee:       0,
		TotalCost: 50,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Append(second))

	led, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(61), led.TotalSpent)
	require.Len(t, led.Payments, 2)
	assert.Equal(t, first, led.Payments[0])
	assert.Equal(t, second, led.Payments[1])

	// Reloading through a fresh handle reproduces the identical state.
	reloaded, err := ledger.OpenStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, led, reloaded)
}

func TestAppendRejectsInconsistentTotal(t *testing.T) {
	store := ledger.OpenStore(filepath.Join(t.TempDir(), "ledger.json"))

	err := store.Append(ledger.Payment{Amount: 10, Fee: 1, TotalCost: 10})
	require.Error(t, err)

	led, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(0), led.TotalSpent)
}

func TestLoadRejectsCorruptTotal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	corrupt := `{"total_spent": 999, "payments": [{"amount": 10, "fee": 1, "total_cost": 11, "timestamp": "2026-01-01T00:00:00Z"}]}`
	require.NoError(t, os.WriteFile(path, []byte(corrupt), 0o600))

	_, err := ledger.OpenStore(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt")
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := ledger.OpenStore(path).Load()
	require.Error(t, err)
}
