package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("NOTIFY_TEST_KEY", "value")
	assert.Equal(t, "value", GetEnv("NOTIFY_TEST_KEY", "def"))
	assert.Equal(t, "def", GetEnv("NOTIFY_TEST_MISSING", "def"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("NOTIFY_TEST_INT", "12")
	assert.Equal(t, 12, GetEnvInt("NOTIFY_TEST_INT", 3))

	t.Setenv("NOTIFY_TEST_INT", "-1")
	assert.Equal(t, 3, GetEnvInt("NOTIFY_TEST_INT", 3))

	t.Setenv("NOTIFY_TEST_INT", "nope")
	assert.Equal(t, 3, GetEnvInt("NOTIFY_TEST_INT", 3))
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("NOTIFY_TEST_LIST", " a, ,b ,c")
	assert.Equal(t, []string{"a", "b", "c"}, GetEnvList("NOTIFY_TEST_LIST"))

	t.Setenv("NOTIFY_TEST_LIST", "")
	assert.Nil(t, GetEnvList("NOTIFY_TEST_LIST"))
}

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PUSH_CONCURRENCY", "DB_PORT", "DB_USER", "DB_NAME", "FCM_CREDENTIALS_OBJECT", "FCM_TOKEN_SHARED_CACHE"} {
		t.Setenv(k, "")
	}
	t.Setenv("DB_HOST", "db.local")
	t.Setenv("DB_PASSWORD", "pw")

	cfg := Load()
	assert.Equal(t, 8, cfg.Push.Concurrency)
	assert.Equal(t, "host=db.local port=5432 user=notify password=pw dbname=notify_db sslmode=disable", cfg.DSN())
	assert.Equal(t, "fcm-service-account.json", cfg.Creds.Object)
	assert.False(t, cfg.Creds.SharedCache)
}
