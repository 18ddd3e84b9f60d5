package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "mpg-server/common/logger"

	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config 服务配置，来源依次为 Nacos、Etcd、本地文件
type Config struct {
	Server struct {
		Port     int    `yaml:"port" json:"port"`
		LogLevel string `yaml:"log_level" json:"log_level"`
		// DemoMode 不连接 MySQL，使用内存存储与内存账本
		DemoMode bool `yaml:"demo_mode" json:"demo_mode"`
	} `yaml:"server" json:"server"`

	Database struct {
		DSN                string `yaml:"dsn" json:"dsn"`
		MaxOpenConns       int    `yaml:"max_open_conns" json:"max_open_conns"`
		MaxIdleConns       int    `yaml:"max_idle_conns" json:"max_idle_conns"`
		ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec" json:"conn_max_lifetime_sec"`
	} `yaml:"database" json:"database"`

	Redis struct {
		Addr     string `yaml:"addr" json:"addr"`
		Password string `yaml:"password" json:"password"`
		DB       int    `yaml:"db" json:"db"`
	} `yaml:"redis" json:"redis"`

	RocketMQ struct {
		Endpoint    string `yaml:"endpoint" json:"endpoint"`
		AccessKey   string `yaml:"access_key" json:"access_key"`
		SecretKey   string `yaml:"secret_key" json:"secret_key"`
		TopicEvents string `yaml:"topic_events" json:"topic_events"`
	} `yaml:"rocketmq" json:"rocketmq"`

	Observability struct {
		EnableProm bool `yaml:"enable_prom" json:"enable_prom"`
	} `yaml:"observability" json:"observability"`

	// Demo 仅在 server.demo_mode 下生效：内存账户与模拟流量
	Demo struct {
		Accounts  int    `yaml:"accounts" json:"accounts"`
		Balance   string `yaml:"balance" json:"balance"`
		BotTickMs int    `yaml:"bot_tick_ms" json:"bot_tick_ms"` // 0 表示不启动模拟流量
	} `yaml:"demo" json:"demo"`

	CORS struct {
		Enabled          bool     `yaml:"enabled" json:"enabled"`
		AllowedOrigins   []string `yaml:"allowed_origins" json:"allowed_origins"`
		AllowedMethods   []string `yaml:"allowed_methods" json:"allowed_methods"`
		AllowedHeaders   []string `yaml:"allowed_headers" json:"allowed_headers"`
		AllowCredentials bool     `yaml:"allow_credentials" json:"allow_credentials"`
		MaxAge           int      `yaml:"max_age" json:"max_age"`
	} `yaml:"cors" json:"cors"`

	// RateLimit 玩家动作接口限流（Redis 滑动窗口）
	RateLimit struct {
		Enabled   bool     `yaml:"enabled" json:"enabled"`
		ByIP      RateRule `yaml:"by_ip" json:"by_ip"`
		ByAccount RateRule `yaml:"by_account" json:"by_account"`
	} `yaml:"rate_limit" json:"rate_limit"`

	// Games 按 game_type 配置的回合参数
	Games map[string]GameConfig `yaml:"games" json:"games"`

	Scheduler struct {
		SettleTickMs     int `yaml:"settle_tick_ms" json:"settle_tick_ms"`
		SettleBatch      int `yaml:"settle_batch" json:"settle_batch"`
		SettleLockTTLSec int `yaml:"settle_lock_ttl_sec" json:"settle_lock_ttl_sec"`
		OutboxTickMs     int `yaml:"outbox_tick_ms" json:"outbox_tick_ms"`
		OutboxBatch      int `yaml:"outbox_batch" json:"outbox_batch"`
	} `yaml:"scheduler" json:"scheduler"`
}

// RateRule 窗口内最多 Requests 次
type RateRule struct {
	Requests      int `yaml:"requests" json:"requests"`
	WindowSeconds int `yaml:"window_seconds" json:"window_seconds"`
}

// GameConfig 单个游戏的回合参数（秒）
type GameConfig struct {
	DurationSec  int `yaml:"duration_sec" json:"duration_sec"`
	IntervalSec  int `yaml:"interval_sec" json:"interval_sec"`
	OpenDelaySec int `yaml:"open_delay_sec" json:"open_delay_sec"`
	// 单次下注上下限（金额字符串），空表示使用游戏默认值
	MinBet string `yaml:"min_bet" json:"min_bet"`
	MaxBet string `yaml:"max_bet" json:"max_bet"`
}

func (g GameConfig) Duration() time.Duration  { return time.Duration(g.DurationSec) * time.Second }
func (g GameConfig) Interval() time.Duration  { return time.Duration(g.IntervalSec) * time.Second }
func (g GameConfig) OpenDelay() time.Duration { return time.Duration(g.OpenDelaySec) * time.Second }

// Game 返回游戏配置，未配置时返回零值
func (c *Config) Game(gameType string) GameConfig {
	if c == nil || c.Games == nil {
		return GameConfig{}
	}
	return c.Games[gameType]
}

// ApplyDefaults 填充缺省值
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Scheduler.SettleTickMs <= 0 {
		c.Scheduler.SettleTickMs = 500
	}
	if c.Scheduler.SettleBatch <= 0 {
		c.Scheduler.SettleBatch = 50
	}
	if c.Scheduler.SettleLockTTLSec <= 0 {
		c.Scheduler.SettleLockTTLSec = 10
	}
	if c.Scheduler.OutboxTickMs <= 0 {
		c.Scheduler.OutboxTickMs = 1000
	}
	if c.Scheduler.OutboxBatch <= 0 {
		c.Scheduler.OutboxBatch = 100
	}
	if c.Demo.Accounts <= 0 {
		c.Demo.Accounts = 20
	}
	if c.Demo.Balance == "" {
		c.Demo.Balance = "10000"
	}
	if len(c.CORS.AllowedMethods) == 0 {
		c.CORS.AllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(c.CORS.AllowedHeaders) == 0 {
		c.CORS.AllowedHeaders = []string{"Content-Type", "X-Request-Id"}
	}
	for _, r := range []*RateRule{&c.RateLimit.ByIP, &c.RateLimit.ByAccount} {
		if r.Requests > 0 && r.WindowSeconds <= 0 {
			r.WindowSeconds = 1
		}
	}
	if c.RocketMQ.TopicEvents == "" {
		c.RocketMQ.TopicEvents = "mpg_round_events"
	}
}

// Load 优先从 Nacos 配置中心读取配置，其次 Etcd，最后从本地文件读取（兜底）
// 支持以下环境变量：
//   - NACOS_SERVER_ADDR / NACOS_DATA_ID / NACOS_NAMESPACE / NACOS_GROUP: 见 nacos.go
//   - ETCD_ENDPOINTS / ETCD_CONFIG_KEY: Etcd 地址与配置 Key
//   - CONFIG_FILE: 配置文件路径（兜底方案，默认：config/dev.yaml）
func Load(ctx context.Context) (*Config, error) {
	if strings.TrimSpace(os.Getenv("NACOS_SERVER_ADDR")) != "" {
		cfg, err := loadFromNacos()
		if err == nil {
			log.Info("[Config] 配置已从 Nacos 加载", zap.String("dataId", os.Getenv("NACOS_DATA_ID")))
			return finish(cfg), nil
		}
		log.Warn("[Config] 从 Nacos 加载配置失败，降级", zap.Error(err))
	}

	if strings.TrimSpace(os.Getenv("ETCD_ENDPOINTS")) != "" {
		cfg, err := loadFromEtcd(ctx)
		if err == nil {
			log.Info("[Config] 配置已从 Etcd 加载", zap.String("key", os.Getenv("ETCD_CONFIG_KEY")))
			return finish(cfg), nil
		}
		log.Warn("[Config] 从 Etcd 加载配置失败，降级使用本地文件", zap.Error(err))
	}

	configFile := getEnvOrDefault("CONFIG_FILE", "config/dev.yaml")
	cfg, err := loadFromFile(configFile)
	if err != nil {
		return nil, errors.Wrapf(err, "load config from local file (%s)", configFile)
	}
	log.Info("[Config] 配置已从本地文件加载", zap.String("file", configFile))
	return finish(cfg), nil
}

func finish(cfg *Config) *Config {
	cfg.ApplyDefaults()
	return cfg
}

// getEnvOrDefault 获取环境变量，如果不存在则返回默认值
func getEnvOrDefault(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

// parse 按扩展名解析；未知扩展名先尝试 YAML 再尝试 JSON
func parse(name string, data []byte) (*Config, error) {
	var cfg Config
	switch filepath.Ext(name) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "parse JSON config")
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "parse YAML config")
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			if err2 := json.Unmarshal(data, &cfg); err2 != nil {
				return nil, fmt.Errorf("parse config (tried YAML and JSON): yaml_err=%v, json_err=%v", err, err2)
			}
		}
	}
	return &cfg, nil
}

// loadFromFile 从本地 JSON 或 YAML 文件加载配置
func loadFromFile(filePath string) (*Config, error) {
	switch filepath.Ext(filePath) {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .json, .yaml, .yml)", filepath.Ext(filePath))
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	return parse(filePath, data)
}

func loadFromEtcd(ctx context.Context) (*Config, error) {
	var endpoints []string
	for _, e := range strings.Split(os.Getenv("ETCD_ENDPOINTS"), ",") {
		if e = strings.TrimSpace(e); e != "" {
			endpoints = append(endpoints, e)
		}
	}
	if len(endpoints) == 0 {
		return nil, errors.New("empty ETCD_ENDPOINTS")
	}
	key := strings.TrimSpace(os.Getenv("ETCD_CONFIG_KEY"))
	if key == "" {
		return nil, errors.New("ETCD_CONFIG_KEY not set")
	}
	dialTimeout := 5 * time.Second
	if v := strings.TrimSpace(os.Getenv("ETCD_DIAL_TIMEOUT_SEC")); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			dialTimeout = d
		}
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
		Username:    os.Getenv("ETCD_USERNAME"),
		Password:    os.Getenv("ETCD_PASSWORD"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "etcd connect")
	}
	defer cli.Close()

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	resp, err := cli.Get(c, key)
	if err != nil {
		return nil, errors.Wrap(err, "etcd get")
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("etcd key not found: %s", key)
	}
	return parse(key, resp.Kvs[0].Value)
}
