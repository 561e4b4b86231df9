package config

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Duration 让 yaml 支持 "10s" 这样的时长写法。
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", value.Value)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type MysqlConfig struct {
	DSN string `yaml:"dsn"`
}

type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	CheckoutTopic string   `yaml:"checkoutTopic"`
	DltTopic      string   `yaml:"dltTopic"`
	GroupID       string   `yaml:"groupId"`
}

type RedisConfig struct {
	Addrs string `yaml:"addrs"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServerAddrs string `yaml:"serverAddrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

type Infra struct {
	Mysql  MysqlConfig  `yaml:"mysql"`
	Kafka  KafkaConfig  `yaml:"kafka"`
	Redis  RedisConfig  `yaml:"redis"`
	Jaeger JaegerConfig `yaml:"jaeger"`
	Nacos  NacosConfig  `yaml:"nacos"`
}

// OrderConfig 聚合订单服务的业务参数。
type OrderConfig struct {
	DefaultPaymentMethod string   `yaml:"defaultPaymentMethod"`
	ProcessingTimeout    Duration `yaml:"processingTimeout"`
	ConnectRetryBackoff  Duration `yaml:"connectRetryBackoff"`
	HandleMaxRetries     int      `yaml:"handleMaxRetries"`
	HandleRetryBackoff   Duration `yaml:"handleRetryBackoff"`
	InventoryBaseURL     string   `yaml:"inventoryBaseUrl"`
	QuantityCacheWindow  Duration `yaml:"quantityCacheWindow"`
	IdempotencyKeyTTL    Duration `yaml:"idempotencyKeyTtl"`
}

// InventoryConfig 聚合库存服务的业务参数。
type InventoryConfig struct {
	MaxConflictRetries int `yaml:"maxConflictRetries"`
}

type Config struct {
	Dev       bool            `yaml:"dev"`
	Infra     Infra           `yaml:"infra"`
	Order     OrderConfig     `yaml:"order"`
	Inventory InventoryConfig `yaml:"inventory"`
}

var (
	current Config
	once    sync.Once
)

// Load 读取配置文件并套用环境变量覆盖。路径为空时仅使用默认值和环境变量。
// 只加载一次，之后通过 Get 访问。
func Load(path string) error {
	var loadErr error
	once.Do(func() {
		current = defaults()
		if path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				loadErr = errors.Wrapf(err, "read config file %s", path)
				return
			}
			if err := yaml.Unmarshal(data, &current); err != nil {
				loadErr = errors.Wrapf(err, "parse config file %s", path)
				return
			}
		}
		applyEnv(&current)
	})
	return loadErr
}

// Get 返回当前配置。必须先调用 Load。
func Get() *Config {
	return &current
}

func defaults() Config {
	return Config{
		Infra: Infra{
			Mysql:  MysqlConfig{DSN: "root:root@tcp(localhost:3306)/demoshop?charset=utf8mb4&parseTime=True&loc=Local"},
			Kafka:  KafkaConfig{Brokers: []string{"localhost:9092"}, CheckoutTopic: "basket-checkout", DltTopic: "basket-checkout-dlt", GroupID: "order-fulfillment-group"},
			Redis:  RedisConfig{Addrs: "localhost:6379"},
			Jaeger: JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
			Nacos:  NacosConfig{Group: "DEFAULT_GROUP"},
		},
		Order: OrderConfig{
			DefaultPaymentMethod: "CashOnDelivery",
			ProcessingTimeout:    Duration(30 * time.Second),
			ConnectRetryBackoff:  Duration(10 * time.Second),
			HandleMaxRetries:     3,
			HandleRetryBackoff:   Duration(2 * time.Second),
			InventoryBaseURL:     "http://localhost:8086",
			QuantityCacheWindow:  Duration(5 * time.Minute),
			IdempotencyKeyTTL:    Duration(24 * time.Hour),
		},
		Inventory: InventoryConfig{MaxConflictRetries: 3},
	}
}

// applyEnv 允许部署环境用环境变量覆盖关键项，和容器编排的习惯保持一致。
func applyEnv(c *Config) {
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		c.Infra.Mysql.DSN = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Infra.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDRS"); v != "" {
		c.Infra.Redis.Addrs = v
	}
	if v := os.Getenv("JAEGER_ENDPOINT"); v != "" {
		c.Infra.Jaeger.Endpoint = v
	}
	if v := os.Getenv("NACOS_SERVER_ADDRS"); v != "" {
		c.Infra.Nacos.Enabled = true
		c.Infra.Nacos.ServerAddrs = v
	}
	if v := os.Getenv("NACOS_NAMESPACE"); v != "" {
		c.Infra.Nacos.Namespace = v
	}
	if v := os.Getenv("NACOS_GROUP"); v != "" {
		c.Infra.Nacos.Group = v
	}
	if v := os.Getenv("INVENTORY_BASE_URL"); v != "" {
		c.Order.InventoryBaseURL = v
	}
	if v := os.Getenv("DEV_MODE"); v == "1" || strings.EqualFold(v, "true") {
		c.Dev = true
	}
}
