package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "s3cret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Address)
	assert.Equal(t, "civictriage", cfg.MongoDBName)
	assert.Equal(t, 72*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "redis", cfg.LockBackend)
	assert.Equal(t, 9, cfg.GeocodePrecision)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.False(t, cfg.Production())
}

func TestLoad_FromEnvFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(
		"CORS_ORIGINS=https://a.example,https://b.example\nISSUE_LOCK_TTL=3s\nLOCK_BACKEND=local\n",
	), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("CORS_ORIGINS")
		os.Unsetenv("ISSUE_LOCK_TTL")
		os.Unsetenv("LOCK_BACKEND")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 3*time.Second, cfg.IssueLockTTL)
	assert.Equal(t, "local", cfg.LockBackend)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("MONGODB_URI", "")
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("MONGODB_URI")
	os.Unsetenv("JWT_SECRET")

	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGODB_URI")
}

func TestLoad_Validation(t *testing.T) {
	setRequired(t)

	t.Setenv("LOCK_BACKEND", "etcd")
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.ErrorContains(t, err, "LOCK_BACKEND")

	t.Setenv("LOCK_BACKEND", "local")
	t.Setenv("GEOCODE_STORAGE_PRECISION", "11")
	_, err = Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.ErrorContains(t, err, "GEOCODE_STORAGE_PRECISION")
}
