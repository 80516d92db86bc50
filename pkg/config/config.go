package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PortalConfig 门户后端配置
type PortalConfig struct {
	// BaseURL 终端访问后端的地址（http/https，WebSocket 按 scheme 自动换算 ws/wss）
	BaseURL string `yaml:"base_url"`
	// ListenAddr portal 进程的监听地址
	ListenAddr string `yaml:"listen_addr"`
	// DBPath 订单存储（SQLite）路径
	DBPath string `yaml:"db_path"`
	// Symbols 模拟行情的标的列表
	Symbols []string `yaml:"symbols"`
	// QuoteInterval 行情随机游走的步进间隔
	QuoteInterval Duration `yaml:"quote_interval"`
}

// TerminalConfig 终端仪表盘配置
type TerminalConfig struct {
	// SnapshotPath 本地快照（Badger）目录，空则禁用快照
	SnapshotPath string `yaml:"snapshot_path"`
	// DefaultTimeframe 图表默认时间粒度：1m/5m/1h/1d
	DefaultTimeframe string `yaml:"default_timeframe"`
}

// StreamConfig 实时通道配置
type StreamConfig struct {
	// PingInterval 应用层 ping 间隔
	PingInterval Duration `yaml:"ping_interval"`
	// ReconnectDelay 断线后的固定重连延迟。
	// 固定 5s、无上限重试是沿用原有行为；需要退避策略时在这里调整。
	ReconnectDelay Duration `yaml:"reconnect_delay"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Config 应用配置
type Config struct {
	Portal   PortalConfig   `yaml:"portal"`
	Terminal TerminalConfig `yaml:"terminal"`
	Stream   StreamConfig   `yaml:"stream"`
	Log      LogConfig      `yaml:"log"`
}

var configFilePath = "config.yaml"

// SetConfigPath 设置配置文件路径
func SetConfigPath(path string) {
	configFilePath = path
}

// GetConfigPath 获取配置文件路径
func GetConfigPath() string {
	return configFilePath
}

// Load 加载配置（文件不存在时返回默认配置）
func Load() (*Config, error) {
	return LoadFromFile(configFilePath)
}

// LoadFromFile 从指定文件加载配置
func LoadFromFile(filePath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Portal: PortalConfig{
			BaseURL:       "http://127.0.0.1:8090",
			ListenAddr:    "127.0.0.1:8090",
			DBPath:        "data/portal.db",
			Symbols:       []string{"AAPL", "MSFT", "GOOGL", "TSLA"},
			QuoteInterval: Duration{time.Second},
		},
		Terminal: TerminalConfig{
			SnapshotPath:     "data/snapshot",
			DefaultTimeframe: "1m",
		},
		Stream: StreamConfig{
			PingInterval:   Duration{10 * time.Second},
			ReconnectDelay: Duration{5 * time.Second},
		},
		Log: LogConfig{
			Level:      "info",
			File:       "logs/bifrost.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Portal.BaseURL == "" {
		return fmt.Errorf("portal.base_url 不能为空")
	}
	if !strings.HasPrefix(c.Portal.BaseURL, "http://") && !strings.HasPrefix(c.Portal.BaseURL, "https://") {
		return fmt.Errorf("portal.base_url 必须以 http:// 或 https:// 开头: %s", c.Portal.BaseURL)
	}
	if c.Stream.ReconnectDelay.Duration <= 0 {
		return fmt.Errorf("stream.reconnect_delay 必须大于 0")
	}
	if c.Stream.PingInterval.Duration <= 0 {
		return fmt.Errorf("stream.ping_interval 必须大于 0")
	}
	switch c.Terminal.DefaultTimeframe {
	case "1m", "5m", "1h", "1d":
	default:
		return fmt.Errorf("terminal.default_timeframe 不支持: %s", c.Terminal.DefaultTimeframe)
	}
	return nil
}

// WebSocketURL 根据 BaseURL 推导实时通道地址（http→ws, https→wss）
func (c *Config) WebSocketURL() string {
	base := c.Portal.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return strings.TrimSuffix(base, "/") + "/ws/trading"
}
