package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patrimonio/internal/config"
	"patrimonio/internal/core"
	"patrimonio/internal/log"
)

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "/tmp/x.db"})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "/tmp/x.db", cfg.SQLiteDBPath)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)

	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Type: MemoryBackend}.Validate())
	assert.Error(t, Config{Type: SQLiteBackend}.Validate())
	assert.Error(t, Config{Type: "postgres"}.Validate())
	assert.Equal(t, []string{"sqlite", "memory"}, GetBackendTypeStrings())
}

func TestCreateMemoryBackend(t *testing.T) {
	ctx := context.Background()
	res, err := NewFactory(log.Discard()).CreateBackend(ctx, Config{Type: MemoryBackend})
	require.NoError(t, err)
	defer res.Close()

	require.NoError(t, res.Ping(ctx))
	events, err := res.Stores.ListLifeEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCreateMemoryBackendFromSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventi.txt")
	require.NoError(t, os.WriteFile(path, []byte("# eventi\n2030;expense;25000,00;Auto\n"), 0o600))

	ctx := context.Background()
	res, err := NewFactory(log.Discard()).CreateBackend(ctx, Config{Type: MemoryBackend, LifeEventsFile: path})
	require.NoError(t, err)

	events, err := res.Stores.ListLifeEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Auto", events[0].Name)
	assert.Equal(t, core.Expense, events[0].Kind)
	assert.Equal(t, int64(2500000), events[0].Amount.Cents)
}

func TestCreateSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "patrimonio.db")

	res, err := NewFactory(log.Discard()).CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	defer res.Close()

	require.NoError(t, res.Ping(ctx))
	created, err := res.Stores.CreateLifeEvent(ctx, core.LifeEvent{
		Name:         "Bonus",
		CalendarYear: 2031,
		Amount:       core.Money{Cents: 100000},
		Kind:         core.Income,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
}

func TestBackendResultCloseWithoutCleanup(t *testing.T) {
	var res *BackendResult
	assert.NoError(t, res.Close())
	assert.NoError(t, (&BackendResult{}).Close())
}
