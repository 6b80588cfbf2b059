package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/taoyao-code/elrs-feeder/internal/mixer"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// AuthConfig 控制 API 的 API Key 认证
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	APIKeys []string `mapstructure:"apiKeys"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	Auth         AuthConfig    `mapstructure:"auth"`
	// InputRate POST /api/input 每秒允许的请求数，0 表示不限
	InputRate  float64 `mapstructure:"inputRate"`
	InputBurst int     `mapstructure:"inputBurst"`
	CORS       bool    `mapstructure:"cors"`
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// SerialConfig 串口配置
type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	Baud        int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

// LinkConfig 链路节拍与超时
type LinkConfig struct {
	SendInterval       time.Duration `mapstructure:"sendInterval"`
	InputStaleAfter    time.Duration `mapstructure:"inputStaleAfter"`
	TxHeartbeatTimeout time.Duration `mapstructure:"txHeartbeatTimeout"`
	TxResetCooldown    time.Duration `mapstructure:"txResetCooldown"`
	LinkStatsTimeout   time.Duration `mapstructure:"linkStatsTimeout"`
	ReconnectBackoff   time.Duration `mapstructure:"reconnectBackoff"`
	EventBuffer        int           `mapstructure:"eventBuffer"`
	CommandBuffer      int           `mapstructure:"commandBuffer"`
}

// DiscoveryConfig 设备发现与参数读取
type DiscoveryConfig struct {
	PingInterval      time.Duration `mapstructure:"pingInterval"`
	SettleDelay       time.Duration `mapstructure:"settleDelay"`
	FieldTimeout      time.Duration `mapstructure:"fieldTimeout"`
	MaxChunks         int           `mapstructure:"maxChunks"`
	MaxRetries        int           `mapstructure:"maxRetries"`
	MaxReadAttempts   int           `mapstructure:"maxReadAttempts"`
	PendingWriteTTL   time.Duration `mapstructure:"pendingWriteTTL"`
	DiscoveryCooldown time.Duration `mapstructure:"discoveryCooldown"`
}

// RedisConfig Redis 事件输出（可选）
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"poolSize"`
	MinIdleConns int           `mapstructure:"minIdleConns"`
	DialTimeout  time.Duration `mapstructure:"dialTimeout"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	KeyPrefix    string        `mapstructure:"keyPrefix"`
	HistoryLen   int           `mapstructure:"historyLen"`
}

// Config 顶层配置结构
type Config struct {
	App       AppConfig         `mapstructure:"app"`
	HTTP      HTTPConfig        `mapstructure:"http"`
	Logging   LoggingConfig     `mapstructure:"logging"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
	Serial    SerialConfig      `mapstructure:"serial"`
	Link      LinkConfig        `mapstructure:"link"`
	Discovery DiscoveryConfig   `mapstructure:"discovery"`
	Redis     RedisConfig       `mapstructure:"redis"`
	Channels  []mixer.RowConfig `mapstructure:"channels"`
}

// Load 从 YAML/TOML/JSON 文件与环境变量加载配置。
// 若 path 为空，则尝试从环境变量 FEEDER_CONFIG 读取；否则回退到 configs/example.yaml。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv("FEEDER_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("example")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	// 环境变量覆盖：前缀 FEEDER_，并将点号替换为下划线
	v.SetEnvPrefix("FEEDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// 首次运行允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = mixer.DefaultRows()
	}
	for i := range cfg.Channels {
		cfg.Channels[i] = cfg.Channels[i].Normalize()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查配置中的明显错误
func (c *Config) Validate() error {
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if len(c.Channels) > 16 {
		return fmt.Errorf("at most 16 channels, got %d", len(c.Channels))
	}
	for i, row := range c.Channels {
		if err := row.Validate(); err != nil {
			return fmt.Errorf("channels[%d]: %w", i, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "elrs-feeder")
	v.SetDefault("app.env", "dev")

	v.SetDefault("http.addr", "127.0.0.1:8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")
	v.SetDefault("http.auth.enabled", false)
	v.SetDefault("http.inputRate", 1000)
	v.SetDefault("http.inputBurst", 50)
	v.SetDefault("http.cors", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file.filename", "logs/elrs-feeder.log")
	v.SetDefault("logging.file.maxSize", 50)
	v.SetDefault("logging.file.maxBackups", 5)
	v.SetDefault("logging.file.maxAge", 14)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("serial.port", "/dev/ttyUSB0")
	v.SetDefault("serial.baud", 5250000)
	v.SetDefault("serial.readTimeout", "10ms")

	v.SetDefault("link.sendInterval", "4ms")
	v.SetDefault("link.inputStaleAfter", "1s")
	v.SetDefault("link.txHeartbeatTimeout", "2s")
	v.SetDefault("link.txResetCooldown", "1s")
	v.SetDefault("link.linkStatsTimeout", "5s")
	v.SetDefault("link.reconnectBackoff", "500ms")
	v.SetDefault("link.eventBuffer", 1024)
	v.SetDefault("link.commandBuffer", 64)

	v.SetDefault("discovery.pingInterval", "1s")
	v.SetDefault("discovery.settleDelay", "500ms")
	v.SetDefault("discovery.fieldTimeout", "100ms")
	v.SetDefault("discovery.maxChunks", 30)
	v.SetDefault("discovery.maxRetries", 3)
	v.SetDefault("discovery.maxReadAttempts", 50)
	v.SetDefault("discovery.pendingWriteTTL", "5s")
	v.SetDefault("discovery.discoveryCooldown", "5s")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolSize", 10)
	v.SetDefault("redis.minIdleConns", 2)
	v.SetDefault("redis.dialTimeout", "2s")
	v.SetDefault("redis.readTimeout", "1s")
	v.SetDefault("redis.writeTimeout", "1s")
	v.SetDefault("redis.keyPrefix", "elrs")
	v.SetDefault("redis.historyLen", 1000)
}
