package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// 环境变量前缀
const envPrefix = "ENGINECTL_"

// EngineConfig 远程引擎连接配置
type EngineConfig struct {
	BaseURL    string        `validate:"required,url"`
	Timeout    time.Duration `validate:"gt=0"`
	RetryCount int           `validate:"gte=0,lte=10"`
	Breaker    BreakerConfig
}

// BreakerConfig 断路器配置（MaxConsecutiveErrors <= 0 表示关闭）
type BreakerConfig struct {
	MaxConsecutiveErrors int64
	Cooldown             time.Duration `validate:"gte=0"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `validate:"oneof=debug info warn warning error"`
	File       string
	MaxSize    int `validate:"gte=0"` // MB
	MaxBackups int `validate:"gte=0"`
	MaxAge     int `validate:"gte=0"` // 天
	Compress   bool
}

// Config 控制面配置
type Config struct {
	Listen      string `validate:"required"`
	DebugListen string // 为空则不启动 metrics/pprof 独立端口
	Engine      EngineConfig
	// 生命周期命令中单次 START/STOP 调用的超时
	LifecycleCallTimeout time.Duration `validate:"gt=0"`
	// 配置读取/提交单次调用的超时
	SyncCallTimeout time.Duration `validate:"gt=0"`
	Log             LogConfig
}

// ConfigFile 配置文件结构（用于 YAML 解析）
type ConfigFile struct {
	Listen      string `yaml:"listen"`
	DebugListen string `yaml:"debug_listen"`
	Engine      struct {
		BaseURL    string `yaml:"base_url"`
		Timeout    string `yaml:"timeout"`
		RetryCount *int   `yaml:"retry_count"`
		Breaker    struct {
			MaxConsecutiveErrors int64  `yaml:"max_consecutive_errors"`
			Cooldown             string `yaml:"cooldown"`
		} `yaml:"breaker"`
	} `yaml:"engine"`
	Lifecycle struct {
		CallTimeout string `yaml:"call_timeout"`
	} `yaml:"lifecycle"`
	Sync struct {
		CallTimeout string `yaml:"call_timeout"`
	} `yaml:"sync"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   *bool  `yaml:"compress"`
	} `yaml:"log"`
}

// Default 默认配置
func Default() *Config {
	return &Config{
		Listen: ":8090",
		Engine: EngineConfig{
			BaseURL:    "http://localhost:8080",
			Timeout:    10 * time.Second,
			RetryCount: 2,
			Breaker: BreakerConfig{
				MaxConsecutiveErrors: 5,
				Cooldown:             15 * time.Second,
			},
		},
		LifecycleCallTimeout: 30 * time.Second,
		SyncCallTimeout:      15 * time.Second,
		Log: LogConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Load 加载配置（优先级：环境变量 > 配置文件 > 默认值）。
// .env 尽力加载，不存在时忽略。filePath 为空时只使用环境变量与默认值。
func Load(filePath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if filePath != "" {
		cf, err := loadConfigFile(filePath)
		if err != nil {
			return nil, errors.Wrapf(err, "load config file %s", filePath)
		}
		if err := cfg.applyFile(cf); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigFile(filePath string) (*ConfigFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var cf ConfigFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, errors.Wrap(err, "parse yaml")
	}
	return &cf, nil
}

func (c *Config) applyFile(cf *ConfigFile) error {
	setString(&c.Listen, cf.Listen)
	setString(&c.DebugListen, cf.DebugListen)
	setString(&c.Engine.BaseURL, cf.Engine.BaseURL)
	if cf.Engine.RetryCount != nil {
		c.Engine.RetryCount = *cf.Engine.RetryCount
	}
	if cf.Engine.Breaker.MaxConsecutiveErrors != 0 {
		c.Engine.Breaker.MaxConsecutiveErrors = cf.Engine.Breaker.MaxConsecutiveErrors
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"engine.timeout", cf.Engine.Timeout, &c.Engine.Timeout},
		{"engine.breaker.cooldown", cf.Engine.Breaker.Cooldown, &c.Engine.Breaker.Cooldown},
		{"lifecycle.call_timeout", cf.Lifecycle.CallTimeout, &c.LifecycleCallTimeout},
		{"sync.call_timeout", cf.Sync.CallTimeout, &c.SyncCallTimeout},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.raw); err != nil {
			return errors.Wrapf(err, "%s", d.key)
		}
	}

	setString(&c.Log.Level, cf.Log.Level)
	setString(&c.Log.File, cf.Log.File)
	setInt(&c.Log.MaxSize, cf.Log.MaxSize)
	setInt(&c.Log.MaxBackups, cf.Log.MaxBackups)
	setInt(&c.Log.MaxAge, cf.Log.MaxAge)
	if cf.Log.Compress != nil {
		c.Log.Compress = *cf.Log.Compress
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Listen, getEnv("LISTEN"))
	setString(&c.DebugListen, getEnv("DEBUG_LISTEN"))
	setString(&c.Engine.BaseURL, getEnv("ENGINE_URL"))
	setString(&c.Log.Level, getEnv("LOG_LEVEL"))
	setString(&c.Log.File, getEnv("LOG_FILE"))

	if v := getEnv("ENGINE_RETRY_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%sENGINE_RETRY_COUNT", envPrefix)
		}
		c.Engine.RetryCount = n
	}
	for key, dst := range map[string]*time.Duration{
		"ENGINE_TIMEOUT":         &c.Engine.Timeout,
		"LIFECYCLE_CALL_TIMEOUT": &c.LifecycleCallTimeout,
		"SYNC_CALL_TIMEOUT":      &c.SyncCallTimeout,
	} {
		if err := setDuration(dst, getEnv(key)); err != nil {
			return errors.Wrapf(err, "%s%s", envPrefix, key)
		}
	}
	return nil
}

var validate = validator.New()

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.Errorf("invalid config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
