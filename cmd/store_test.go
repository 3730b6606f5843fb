package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reverscodes/codes-cli/internal/config"
)

func TestInitStore_SQLite(t *testing.T) {
	tmpDir := t.TempDir()
	dsn := filepath.Join(tmpDir, "test.db")

	cfg = &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: dsn,
		},
	}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st)
	defer st.Close() //nolint:errcheck
}

func TestInitStore_SQLiteDefaultDSN(t *testing.T) {
	// Run in a temp dir so the default database lands there.
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(origDir) //nolint:errcheck

	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "sqlite"},
	}

	st, err := openStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st)
	defer st.Close() //nolint:errcheck

	_, statErr := os.Stat(filepath.Join(tmpDir, "codes.db"))
	assert.NoError(t, statErr)
}

func TestInitStore_Disabled(t *testing.T) {
	cfg = &config.Config{}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, st)

	_, err = openStore(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errNoStore))
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "mysql"},
	}

	st, err := initStore(context.Background())
	assert.Nil(t, st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestInitStore_PostgresNeedsURL(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{Driver: "postgres"},
	}

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")
}

func TestCachePrune(t *testing.T) {
	cfg = testConfig(t.TempDir())
	ctx := context.Background()

	st, err := openStore(ctx)
	require.NoError(t, err)
	require.NoError(t, st.SetCachedPage(ctx, "https://old.example.com", "<html></html>", -time.Hour))
	require.NoError(t, st.SetCachedPage(ctx, "https://new.example.com", "<html></html>", time.Hour))
	require.NoError(t, st.Close())

	cachePruneCmd.SetContext(ctx)
	require.NoError(t, cachePruneCmd.RunE(cachePruneCmd, nil))

	st, err = openStore(ctx)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	_, ok, err := st.GetCachedPage(ctx, "https://new.example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	n, err := st.DeleteExpiredPages(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
