// internal/pkg/bootstrap/config_test.go
package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	Init()
	cfg := GetCurrentConfig()

	assert.Equal(t, "seckill-orders", cfg.App.OrderTopic)
	assert.Equal(t, "seckill-orders-retry", cfg.App.RetryTopic)
	assert.Equal(t, "seckill-orders-dlt", cfg.App.DltTopic)
	assert.Equal(t, 3, cfg.App.MaxRetries)
	assert.Equal(t, "redis", cfg.App.LockProvider)
	assert.Equal(t, 100, cfg.App.RateLimit.MaxTokens)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Infra.Kafka.Brokers)
}

func TestInit_YamlFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
app:
  order_topic: custom-orders
  worker_count: 8
  lock_provider: zookeeper
infra:
  redis:
    addr: redis.internal:6379
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_PATH", path)

	Init()
	cfg := GetCurrentConfig()

	assert.Equal(t, "custom-orders", cfg.App.OrderTopic)
	assert.Equal(t, 8, cfg.App.WorkerCount)
	assert.Equal(t, "zookeeper", cfg.App.LockProvider)
	assert.Equal(t, "redis.internal:6379", cfg.Infra.Redis.Addr)
	// 文件未覆盖的字段保持缺省值
	assert.Equal(t, 3, cfg.App.MaxRetries)
}

func TestInit_EnvOverridesFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("REDIS_ADDR", "redis.prod:6379")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	Init()
	cfg := GetCurrentConfig()

	assert.Equal(t, "redis.prod:6379", cfg.Infra.Redis.Addr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Infra.Kafka.Brokers)
}
