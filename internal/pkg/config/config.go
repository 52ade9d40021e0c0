package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 汇总了库存服务的全部启动配置。
// 来源优先级: 默认值 < YAML 文件 < ATLAS_* 环境变量。
type Config struct {
	Service struct {
		Name string `yaml:"name"`
		Port int    `yaml:"port"`
	} `yaml:"service"`

	Mysql struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Zookeeper struct {
		Servers          []string `yaml:"servers"`
		SessionTimeoutMs int      `yaml:"session_timeout_ms"`
	} `yaml:"zookeeper"`

	Kafka struct {
		Brokers    []string `yaml:"brokers"`
		EventTopic string   `yaml:"event_topic"`
		AlertTopic string   `yaml:"alert_topic"`
	} `yaml:"kafka"`

	Nacos struct {
		Enabled     bool   `yaml:"enabled"`
		ServerAddrs string `yaml:"server_addrs"`
		Namespace   string `yaml:"namespace"`
		Group       string `yaml:"group"`
	} `yaml:"nacos"`

	Jaeger struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"jaeger"`

	Inventory Inventory `yaml:"inventory"`

	Monitor struct {
		IntervalMs  int    `yaml:"interval_ms"`
		BatchSize   int    `yaml:"batch_size"`
		Concurrency int    `yaml:"concurrency"`
		AlertRule   string `yaml:"alert_rule"`
	} `yaml:"monitor"`
}

// Inventory 是预占子系统自身的可调参数。
type Inventory struct {
	Strategy               string `yaml:"strategy"`     // pessimistic | optimistic
	LockBackend            string `yaml:"lock_backend"` // redis | zookeeper | none
	LockWaitTimeoutMs      int    `yaml:"lock_wait_timeout_ms"`
	LockTTLMs              int    `yaml:"lock_ttl_ms"`
	PessimisticMaxAttempts int    `yaml:"pessimistic_max_attempts"`
	OptimisticMaxRetries   int    `yaml:"optimistic_max_retries"`
	RetryBackoffBaseMs     int    `yaml:"retry_backoff_base_ms"`
	ReservationTTLSeconds  int    `yaml:"reservation_ttl_seconds"`
	ReaperIntervalSeconds  int    `yaml:"reaper_interval_seconds"`
	ReaperBatchSize        int    `yaml:"reaper_batch_size"`
}

func (i Inventory) LockWaitTimeout() time.Duration {
	return time.Duration(i.LockWaitTimeoutMs) * time.Millisecond
}
func (i Inventory) LockTTL() time.Duration { return time.Duration(i.LockTTLMs) * time.Millisecond }
func (i Inventory) RetryBackoffBase() time.Duration {
	return time.Duration(i.RetryBackoffBaseMs) * time.Millisecond
}
func (i Inventory) ReservationTTL() time.Duration {
	return time.Duration(i.ReservationTTLSeconds) * time.Second
}
func (i Inventory) ReaperInterval() time.Duration {
	return time.Duration(i.ReaperIntervalSeconds) * time.Second
}

// Load 读取配置。path 为空时尝试 ATLAS_CONFIG 指向的文件，都没有就用默认值。
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = os.Getenv("ATLAS_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Service.Name = "inventory-service"
	cfg.Service.Port = 8082
	cfg.Mysql.DSN = "root:root@tcp(localhost:3306)/atlas?charset=utf8mb4&parseTime=True&loc=Local"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Zookeeper.Servers = []string{"localhost:2181"}
	cfg.Zookeeper.SessionTimeoutMs = 5000
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Kafka.EventTopic = "stock-events"
	cfg.Kafka.AlertTopic = "stock-alerts"
	cfg.Nacos.Group = "DEFAULT_GROUP"
	cfg.Jaeger.Endpoint = "http://localhost:14268/api/traces"

	cfg.Inventory = Inventory{
		Strategy:               "pessimistic",
		LockBackend:            "redis",
		LockWaitTimeoutMs:      200,
		LockTTLMs:              10000,
		PessimisticMaxAttempts: 3,
		OptimisticMaxRetries:   5,
		RetryBackoffBaseMs:     20,
		ReservationTTLSeconds:  900,
		ReaperIntervalSeconds:  30,
		ReaperBatchSize:        100,
	}

	cfg.Monitor.IntervalMs = 60000
	cfg.Monitor.BatchSize = 50
	cfg.Monitor.Concurrency = 8
	cfg.Monitor.AlertRule = "available <= threshold"
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ATLAS_MYSQL_DSN"); v != "" {
		cfg.Mysql.DSN = v
	}
	if v := os.Getenv("ATLAS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ATLAS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("ATLAS_ZK_SERVERS"); v != "" {
		cfg.Zookeeper.Servers = strings.Split(v, ",")
	}
	if v := os.Getenv("ATLAS_STRATEGY"); v != "" {
		cfg.Inventory.Strategy = v
	}
	if v := os.Getenv("ATLAS_LOCK_BACKEND"); v != "" {
		cfg.Inventory.LockBackend = v
	}
	if v := os.Getenv("ATLAS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Service.Port = port
		}
	}
	if v := os.Getenv("ATLAS_JAEGER_ENDPOINT"); v != "" {
		cfg.Jaeger.Endpoint = v
	}
}

func (c *Config) validate() error {
	switch c.Inventory.Strategy {
	case "pessimistic", "optimistic":
	default:
		return errors.Errorf("invalid inventory.strategy %q (want pessimistic or optimistic)", c.Inventory.Strategy)
	}
	switch c.Inventory.LockBackend {
	case "redis", "zookeeper", "none":
	default:
		return errors.Errorf("invalid inventory.lock_backend %q (want redis, zookeeper or none)", c.Inventory.LockBackend)
	}
	return nil
}
