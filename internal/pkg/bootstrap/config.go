// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config 是服务的全量配置，通过本地 yaml 文件加载，
// 关键的基础设施地址允许被环境变量覆盖，便于容器化部署。
type Config struct {
	App   AppConfig   `yaml:"app"`
	Infra InfraConfig `yaml:"infra"`
}

type AppConfig struct {
	OrderTopic        string `yaml:"order_topic"`
	RetryTopic        string `yaml:"retry_topic"`
	DltTopic          string `yaml:"dlt_topic"`
	ConsumerGroup     string `yaml:"consumer_group"`
	WorkerCount       int    `yaml:"worker_count"`
	MaxRetries        int    `yaml:"max_retries"`
	RetryDelaySeconds int    `yaml:"retry_delay_seconds"`

	// LockProvider 选择兜底下单路径使用的分布式锁实现: redis | zookeeper
	LockProvider   string `yaml:"lock_provider"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	MaxTokens       int `yaml:"max_tokens"`
	TokensPerSecond int `yaml:"tokens_per_second"`
}

type InfraConfig struct {
	Redis     RedisConfig     `yaml:"redis"`
	Mysql     MysqlConfig     `yaml:"mysql"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Nacos     NacosConfig     `yaml:"nacos"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MysqlConfig struct {
	DSN string `yaml:"dsn"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type NacosConfig struct {
	ServerAddrs string `yaml:"server_addrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

type ZookeeperConfig struct {
	Servers []string `yaml:"servers"`
}

var (
	configMu      sync.RWMutex
	currentConfig Config
)

// Init 加载配置。配置文件路径来自 CONFIG_PATH，缺省为 ./config.yaml；
// 文件不存在时使用内置缺省值，方便本地直接启动。
func Init() {
	cfg := defaultConfig()

	path := getEnv("CONFIG_PATH", "config.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			panic(fmt.Sprintf("FATAL: invalid config file %s: %v", path, err))
		}
	}

	applyEnvOverrides(&cfg)

	configMu.Lock()
	currentConfig = cfg
	configMu.Unlock()
}

// GetCurrentConfig 返回当前生效的配置快照。
func GetCurrentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return currentConfig
}

func defaultConfig() Config {
	var cfg Config
	cfg.App = AppConfig{
		OrderTopic:        "seckill-orders",
		RetryTopic:        "seckill-orders-retry",
		DltTopic:          "seckill-orders-dlt",
		ConsumerGroup:     "seckill-order-workers",
		WorkerCount:       4,
		MaxRetries:        3,
		RetryDelaySeconds: 5,
		LockProvider:      "redis",
		LockTTLSeconds:    10,
		RateLimit: RateLimitConfig{
			MaxTokens:       100,
			TokensPerSecond: 10,
		},
	}
	cfg.Infra.Redis = RedisConfig{Addr: "localhost:6379"}
	cfg.Infra.Mysql = MysqlConfig{DSN: "root:root@tcp(localhost:3306)/flashsale?charset=utf8mb4&parseTime=True&loc=UTC"}
	cfg.Infra.Kafka = KafkaConfig{Brokers: []string{"localhost:9092"}}
	cfg.Infra.Jaeger = JaegerConfig{Endpoint: "http://localhost:14268/api/traces"}
	cfg.Infra.Nacos = NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"}
	cfg.Infra.Zookeeper = ZookeeperConfig{Servers: []string{"localhost:2181"}}
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("REDIS_ADDR"); ok {
		cfg.Infra.Redis.Addr = v
	}
	if v, ok := os.LookupEnv("MYSQL_DSN"); ok {
		cfg.Infra.Mysql.DSN = v
	}
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		cfg.Infra.Kafka.Brokers = splitCSV(v)
	}
	if v, ok := os.LookupEnv("JAEGER_ENDPOINT"); ok {
		cfg.Infra.Jaeger.Endpoint = v
	}
	if v, ok := os.LookupEnv("NACOS_SERVER_ADDRS"); ok {
		cfg.Infra.Nacos.ServerAddrs = v
	}
	if v, ok := os.LookupEnv("NACOS_NAMESPACE"); ok {
		cfg.Infra.Nacos.Namespace = v
	}
	if v, ok := os.LookupEnv("NACOS_GROUP"); ok {
		cfg.Infra.Nacos.Group = v
	}
	if v, ok := os.LookupEnv("ZOOKEEPER_SERVERS"); ok {
		cfg.Infra.Zookeeper.Servers = splitCSV(v)
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
