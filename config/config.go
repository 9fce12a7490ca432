// =============================================================================
// 📦 personad 核心配置结构
// =============================================================================
// 所有运行时配置集中于此，由 Loader 按「默认值 → YAML 文件 → 环境变量」
// 的优先级填充。
// =============================================================================
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config 是 personad 的完整配置结构
type Config struct {
	// Server 网关服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Database 持久化存储配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Redis 缓存配置（未配置 Addr 时退回数据库缓存表）
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Chat 终端聊天桥配置
	Chat ChatConfig `yaml:"chat" env:"CHAT"`

	// Orchestrator 启动编排配置
	Orchestrator OrchestratorConfig `yaml:"orchestrator" env:"ORCH"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Secrets 进程级模型凭证，键为 provider 名称（如 "openai"）
	Secrets map[string]string `yaml:"secrets" env:"-"`
}

// ServerConfig 网关服务器配置
type ServerConfig struct {
	// HTTP 端口（聊天桥与网关共用）
	Port int `yaml:"port" env:"PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig 持久化存储配置
type DatabaseConfig struct {
	// PostgreSQL 连接串；设置后始终选择网络后端
	PostgresURL string `yaml:"postgres_url" env:"POSTGRES_URL"`
	// 嵌入式 SQLite 文件路径覆盖（默认 <data_dir>/db.sqlite）
	SQLiteFile string `yaml:"sqlite_file" env:"SQLITE_FILE"`
	// 数据目录，不存在时自动创建
	DataDir string `yaml:"data_dir" env:"DATA_DIR"`
	// 最大打开连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接数
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	// 地址，留空表示不使用 Redis
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 默认过期时间
	DefaultTTL time.Duration `yaml:"default_ttl" env:"DEFAULT_TTL"`
}

// ChatConfig 终端聊天桥配置
type ChatConfig struct {
	// 网关基础 URL（不含端口）
	APIBase string `yaml:"api_base" env:"API_BASE"`
}

// OrchestratorConfig 启动编排配置
type OrchestratorConfig struct {
	// FailFast 为 true 时任一角色启动失败即中止整个进程；
	// 默认 false：仅记录错误并继续启动其余角色
	FailFast bool `yaml:"fail_fast" env:"FAIL_FAST"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// =============================================================================
// 🔧 默认值
// =============================================================================

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			DataDir:         "data",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Redis: RedisConfig{
			DefaultTTL: 5 * time.Minute,
		},
		Chat: ChatConfig{
			APIBase: "http://localhost",
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			OutputPaths: []string{"stderr"},
		},
		Secrets: map[string]string{},
	}
}

// =============================================================================
// 🔍 验证与辅助方法
// =============================================================================

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, "invalid server port")
	}
	if c.Database.DataDir == "" {
		errs = append(errs, "data_dir must not be empty")
	}
	if c.Chat.APIBase == "" {
		errs = append(errs, "chat api_base must not be empty")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GatewayURL 返回聊天桥访问网关所用的基础地址，如 http://localhost:3000
func (c *Config) GatewayURL() string {
	return fmt.Sprintf("%s:%d", c.Chat.APIBase, c.Server.Port)
}
