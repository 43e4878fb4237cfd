package config

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validKey() string {
	return base64.StdEncoding.EncodeToString(make([]byte, 32))
}

func TestFromEnv_PIIKeys(t *testing.T) {
	t.Run("missing PII_KEYS fails", func(t *testing.T) {
		t.Setenv("PII_KEYS", "")
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("wrong key length fails", func(t *testing.T) {
		t.Setenv("PII_KEYS", "1:"+base64.StdEncoding.EncodeToString(make([]byte, 16)))
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("active version must exist", func(t *testing.T) {
		t.Setenv("PII_KEYS", "1:"+validKey())
		t.Setenv("PII_ACTIVE_KEY_VERSION", "2")
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("multiple versions parse", func(t *testing.T) {
		t.Setenv("PII_KEYS", "1:"+validKey()+",2:"+validKey())
		t.Setenv("PII_ACTIVE_KEY_VERSION", "2")
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Len(t, cfg.PII.Keys, 2)
		assert.Equal(t, 2, cfg.PII.ActiveVersion)
	})
}

func TestFromEnv_Retention(t *testing.T) {
	t.Setenv("PII_KEYS", "1:"+validKey())
	t.Setenv("RETENTION_DAYS", "audit_entry:2555, person:3650")
	t.Setenv("RETENTION_DEFAULT_DAYS", "1825")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 2555, cfg.Retention.WindowDays("audit_entry"))
	assert.Equal(t, 3650, cfg.Retention.WindowDays("person"))
	assert.Equal(t, 1825, cfg.Retention.WindowDays("family"), "unlisted entity falls back to default")
}

func TestFromEnv_PIIAccessLoggingDefaultsOn(t *testing.T) {
	t.Setenv("PII_KEYS", "1:"+validKey())

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.Audit.LogPIIAccess)

	t.Setenv("AUDIT_PII_ACCESS", "false")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.Audit.LogPIIAccess)
}
