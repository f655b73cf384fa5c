// Package config 引擎框架配置：YAML 加载、默认值、校验
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig 引擎框架配置（对外导出）
type EngineConfig struct {
	AgentFlow struct {
		General struct {
			InstanceName string `yaml:"instance_name"`
			LogLevel     string `yaml:"log_level"`
			LogFormat    string `yaml:"log_format"` // text / json
			Env          string `yaml:"env"`
		} `yaml:"general"`
		Execution ExecutionConfig `yaml:"execution"`
		Storage   struct {
			Database DatabaseConfig `yaml:"database"`
			Cache    struct {
				DefaultTTL    time.Duration `yaml:"default_ttl"`
				CleanInterval time.Duration `yaml:"clean_interval"`
			} `yaml:"cache"`
		} `yaml:"storage"`
		API struct {
			Host         string        `yaml:"host"`
			Port         int           `yaml:"port"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
		} `yaml:"api"`
		Schedules     []ScheduleConfig   `yaml:"schedules"`
		Notifications NotificationConfig `yaml:"notifications"`
	} `yaml:"agentflow"`
}

// ExecutionConfig 调度执行配置
type ExecutionConfig struct {
	WorkerConcurrency    int           `yaml:"worker_concurrency"`      // 全局工作池大小
	MaxConcurrencyPerRun int           `yaml:"max_concurrency_per_run"` // 单次运行的并发上限，0 表示不限
	DefaultNodeTimeout   time.Duration `yaml:"default_node_timeout"`    // 0 表示不限
	EventBuffer          int           `yaml:"event_buffer"`            // 事件通道缓冲
	Retry                struct {
		MaxAttempts int           `yaml:"max_attempts"`
		Delay       time.Duration `yaml:"delay"`
		MaxDelay    time.Duration `yaml:"max_delay"`
	} `yaml:"retry"`
}

// DatabaseConfig 运行历史数据库配置
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Type            string        `yaml:"type"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// ScheduleConfig 定时运行配置
type ScheduleConfig struct {
	Name     string         `yaml:"name"`
	Workflow string         `yaml:"workflow"`
	Cron     string         `yaml:"cron"` // 带秒的 cron 表达式
	Input    map[string]any `yaml:"input"`
}

// NotificationConfig 通知配置
type NotificationConfig struct {
	Email struct {
		Enabled  bool     `yaml:"enabled"`
		SMTPHost string   `yaml:"smtp_host"`
		SMTPPort int      `yaml:"smtp_port"`
		Username string   `yaml:"username"`
		Password string   `yaml:"password"`
		From     string   `yaml:"from"`
		To       []string `yaml:"to"`
		OnEvents []string `yaml:"on_events"` // 触发通知的事件类型
	} `yaml:"email"`
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadFrameworkConfig 从YAML文件加载配置并应用默认值、校验（对外导出）
func LoadFrameworkConfig(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return ParseFrameworkConfig(data)
}

// ParseFrameworkConfig 解析YAML内容（对外导出）
// 字符串中的 ${NAME} 从环境变量替换，未设置的变量替换为空串
func ParseFrameworkConfig(data []byte) (*EngineConfig, error) {
	expanded := envPattern.ReplaceAllStringFunc(string(data), func(m string) string {
		name := envPattern.FindStringSubmatch(m)[1]
		return os.Getenv(name)
	})

	var cfg EngineConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 全默认值配置
func Default() *EngineConfig {
	cfg := &EngineConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults 应用默认值
func (c *EngineConfig) ApplyDefaults() {
	af := &c.AgentFlow

	// General默认值
	if af.General.InstanceName == "" {
		af.General.InstanceName = "agentflow"
	}
	if af.General.LogLevel == "" {
		af.General.LogLevel = "info"
	}
	if af.General.LogFormat == "" {
		af.General.LogFormat = "text"
	}
	if af.General.Env == "" {
		af.General.Env = "dev"
	}

	// Execution默认值
	if af.Execution.WorkerConcurrency <= 0 {
		af.Execution.WorkerConcurrency = 10
	}
	if af.Execution.EventBuffer <= 0 {
		af.Execution.EventBuffer = 64
	}
	if af.Execution.Retry.Delay <= 0 {
		af.Execution.Retry.Delay = 200 * time.Millisecond
	}
	if af.Execution.Retry.MaxDelay <= 0 {
		af.Execution.Retry.MaxDelay = 5 * time.Second
	}

	// Database默认值
	if af.Storage.Database.Type == "" {
		af.Storage.Database.Type = "sqlite"
	}
	if af.Storage.Database.DSN == "" && af.Storage.Database.Type == "sqlite" {
		af.Storage.Database.DSN = "agentflow.db"
	}
	if af.Storage.Database.MaxOpenConns <= 0 {
		af.Storage.Database.MaxOpenConns = 10
	}
	if af.Storage.Database.MaxIdleConns <= 0 {
		af.Storage.Database.MaxIdleConns = 5
	}
	if af.Storage.Database.ConnMaxLifetime <= 0 {
		af.Storage.Database.ConnMaxLifetime = 2 * time.Hour
	}
	if af.Storage.Database.ConnMaxIdleTime <= 0 {
		af.Storage.Database.ConnMaxIdleTime = 1 * time.Hour
	}

	// Cache默认值
	if af.Storage.Cache.DefaultTTL <= 0 {
		af.Storage.Cache.DefaultTTL = 1 * time.Hour
	}
	if af.Storage.Cache.CleanInterval <= 0 {
		af.Storage.Cache.CleanInterval = 10 * time.Minute
	}

	// API默认值
	if af.API.Host == "" {
		af.API.Host = "0.0.0.0"
	}
	if af.API.Port <= 0 {
		af.API.Port = 8080
	}
	if af.API.ReadTimeout <= 0 {
		af.API.ReadTimeout = 30 * time.Second
	}
	if af.API.WriteTimeout <= 0 {
		af.API.WriteTimeout = 30 * time.Second
	}

	// Email默认值
	if af.Notifications.Email.SMTPPort <= 0 {
		af.Notifications.Email.SMTPPort = 587
	}
	if len(af.Notifications.Email.OnEvents) == 0 {
		af.Notifications.Email.OnEvents = []string{"approval.requested", "run.failed"}
	}
}

// Validate 校验配置合法性
func (c *EngineConfig) Validate() error {
	af := &c.AgentFlow

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[af.General.LogLevel] {
		return fmt.Errorf("log_level必须是debug/info/warn/error之一")
	}
	if af.General.LogFormat != "text" && af.General.LogFormat != "json" {
		return fmt.Errorf("log_format必须是text/json之一")
	}

	if af.Execution.WorkerConcurrency <= 0 {
		return fmt.Errorf("execution.worker_concurrency必须大于0")
	}
	if af.Execution.MaxConcurrencyPerRun < 0 {
		return fmt.Errorf("execution.max_concurrency_per_run不能为负数")
	}
	if af.Execution.DefaultNodeTimeout < 0 {
		return fmt.Errorf("execution.default_node_timeout不能为负数")
	}
	if af.Execution.Retry.MaxAttempts < 0 {
		return fmt.Errorf("execution.retry.max_attempts不能为负数")
	}
	if af.Execution.Retry.MaxDelay < af.Execution.Retry.Delay {
		return fmt.Errorf("execution.retry.max_delay不能小于delay")
	}

	if af.Storage.Database.Enabled {
		validDBTypes := map[string]bool{"sqlite": true, "postgres": true, "postgresql": true, "mysql": true}
		if !validDBTypes[af.Storage.Database.Type] {
			return fmt.Errorf("database.type必须是sqlite/postgres/mysql之一")
		}
		if af.Storage.Database.DSN == "" {
			return fmt.Errorf("database.dsn不能为空")
		}
	}

	if af.API.Port > 65535 {
		return fmt.Errorf("api.port超出范围: %d", af.API.Port)
	}

	for i, s := range af.Schedules {
		if s.Workflow == "" {
			return fmt.Errorf("schedules[%d].workflow不能为空", i)
		}
		if s.Cron == "" {
			return fmt.Errorf("schedules[%d].cron不能为空", i)
		}
	}

	email := af.Notifications.Email
	if email.Enabled {
		if email.SMTPHost == "" {
			return fmt.Errorf("notifications.email.smtp_host不能为空")
		}
		if email.From == "" || len(email.To) == 0 {
			return fmt.Errorf("notifications.email需要配置from和to")
		}
	}
	return nil
}

// GetWorkerConcurrency 获取Worker并发数
func (c *EngineConfig) GetWorkerConcurrency() int {
	return c.AgentFlow.Execution.WorkerConcurrency
}

// GetDatabaseType 获取数据库类型
func (c *EngineConfig) GetDatabaseType() string {
	return c.AgentFlow.Storage.Database.Type
}

// GetDatabaseDSN 获取数据库DSN
func (c *EngineConfig) GetDatabaseDSN() string {
	return c.AgentFlow.Storage.Database.DSN
}

// APIAddr 监听地址
func (c *EngineConfig) APIAddr() string {
	return fmt.Sprintf("%s:%d", c.AgentFlow.API.Host, c.AgentFlow.API.Port)
}
