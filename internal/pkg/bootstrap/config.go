// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"marketbot/internal/pkg/nacos"
	"marketbot/internal/pkg/redis"
)

// Config 是 inventory 服务的完整配置
type Config struct {
	App    AppConfig    `yaml:"app"`
	Ledger LedgerConfig `yaml:"ledger"`
	Lock   LockConfig   `yaml:"lock"`
	Infra  InfraConfig  `yaml:"infra"`
}

type AppConfig struct {
	Name     string `yaml:"name"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// LedgerConfig 选择账本和订单的存储后端: redis | mysql | sqlite。
// 订单始终保存在 SQL 中，ledger=redis 时订单使用 mysql (若配置了 DSN) 否则使用 sqlite。
type LedgerConfig struct {
	Backend  string `yaml:"backend"`
	RedisKey string `yaml:"redis_key"`
}

// LockConfig 选择临界区锁的实现: local | redis | zookeeper | sql
type LockConfig struct {
	Backend      string        `yaml:"backend"`
	Name         string        `yaml:"name"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	TTL          time.Duration `yaml:"ttl"`
}

type InfraConfig struct {
	Redis     redis.Config    `yaml:"redis"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Nacos     nacos.Config    `yaml:"nacos"`
}

type MySQLConfig struct {
	DSN          string        `yaml:"dsn"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	ConnMaxLife  time.Duration `yaml:"conn_max_life"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers"`
	PaymentTopic string   `yaml:"payment_topic"`
	EventTopic   string   `yaml:"event_topic"`
	GroupID      string   `yaml:"group_id"`
}

type ZookeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
	Root           string        `yaml:"root"`
}

type JaegerConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// DefaultConfig 返回本地开发可直接运行的配置: sqlite 账本 + 进程内锁
func DefaultConfig() Config {
	return Config{
		App:    AppConfig{Name: "inventory-service", Port: 8082, LogLevel: "info"},
		Ledger: LedgerConfig{Backend: "sqlite", RedisKey: "inventory:ledger:dataset"},
		Lock: LockConfig{
			Backend:      "local",
			Name:         "inventory:ledger",
			Timeout:      3 * time.Second,
			PollInterval: 50 * time.Millisecond,
			TTL:          30 * time.Second,
		},
		Infra: InfraConfig{
			MySQL:  MySQLConfig{MaxOpenConns: 20, MaxIdleConns: 5, ConnMaxLife: 30 * time.Minute},
			SQLite: SQLiteConfig{Path: "inventory.db"},
			Kafka: KafkaConfig{
				PaymentTopic: "payment-outcomes",
				EventTopic:   "inventory-events",
				GroupID:      "inventory-service",
			},
			Zookeeper: ZookeeperConfig{SessionTimeout: 10 * time.Second, Root: "/distributed_locks"},
			Jaeger:    JaegerConfig{SampleRatio: 1},
			Nacos:     nacos.Config{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
		},
	}
}

var (
	currentMu     sync.RWMutex
	currentConfig = DefaultConfig()
)

// GetCurrentConfig 返回最近一次加载的配置
func GetCurrentConfig() Config {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return currentConfig
}

// LoadConfig 读取 YAML 文件 (path 为空时只用默认值)，再应用环境变量覆盖
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	currentMu.Lock()
	currentConfig = cfg
	currentMu.Unlock()
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)
	if port, err := strconv.Atoi(getEnv("PORT", "")); err == nil {
		cfg.App.Port = port
	}
	cfg.Ledger.Backend = getEnv("LEDGER_BACKEND", cfg.Ledger.Backend)
	cfg.Lock.Backend = getEnv("LOCK_BACKEND", cfg.Lock.Backend)
	if addrs := getEnv("REDIS_ADDRS", ""); addrs != "" {
		cfg.Infra.Redis.Addrs = splitList(addrs)
	}
	cfg.Infra.MySQL.DSN = getEnv("MYSQL_DSN", cfg.Infra.MySQL.DSN)
	cfg.Infra.SQLite.Path = getEnv("SQLITE_PATH", cfg.Infra.SQLite.Path)
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.Infra.Kafka.Brokers = splitList(brokers)
		cfg.Infra.Kafka.Enabled = true
	}
	if servers := getEnv("ZK_SERVERS", ""); servers != "" {
		cfg.Infra.Zookeeper.Servers = splitList(servers)
	}
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	if ratio, err := strconv.ParseFloat(getEnv("JAEGER_SAMPLE_RATIO", ""), 64); err == nil {
		cfg.Infra.Jaeger.SampleRatio = ratio
	}
	if addrs := getEnv("NACOS_SERVER_ADDRS", ""); addrs != "" {
		cfg.Infra.Nacos.ServerAddrs = addrs
		cfg.Infra.Nacos.Enabled = true
	}
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)
}

// Validate 检查后端选择与其依赖的配置是否匹配
func (c Config) Validate() error {
	switch c.Ledger.Backend {
	case "sqlite", "mysql", "redis":
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}
	switch c.Lock.Backend {
	case "local", "redis", "zookeeper", "sql":
	default:
		return fmt.Errorf("unknown lock backend %q", c.Lock.Backend)
	}
	if c.Ledger.Backend == "mysql" && c.Infra.MySQL.DSN == "" {
		return fmt.Errorf("ledger backend mysql requires infra.mysql.dsn")
	}
	if (c.Ledger.Backend == "redis" || c.Lock.Backend == "redis") && len(c.Infra.Redis.Addrs) == 0 {
		return fmt.Errorf("redis backend requires infra.redis.addrs")
	}
	if c.Lock.Backend == "zookeeper" && len(c.Infra.Zookeeper.Servers) == 0 {
		return fmt.Errorf("zookeeper lock requires infra.zookeeper.servers")
	}
	if c.Infra.Kafka.Enabled && len(c.Infra.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled without brokers")
	}
	if c.Lock.Timeout < 0 || c.Lock.PollInterval < 0 {
		return fmt.Errorf("lock timings must not be negative")
	}
	return nil
}

// getEnv 从环境变量中读取配置
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
