package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 9090
  log_level: debug
  demo_mode: true
games:
  roulette:
    duration_sec: 20
    interval_sec: 3
    open_delay_sec: 1
scheduler:
  settle_batch: 10
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadFromFileYAML(t *testing.T) {
	t.Setenv("NACOS_SERVER_ADDR", "")
	t.Setenv("ETCD_ENDPOINTS", "")
	t.Setenv("CONFIG_FILE", writeFile(t, "dev.yaml", sampleYAML))

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.DemoMode)
	assert.Equal(t, 20*time.Second, cfg.Game("roulette").Duration())
	assert.Equal(t, 3*time.Second, cfg.Game("roulette").Interval())
	assert.Equal(t, time.Second, cfg.Game("roulette").OpenDelay())
	assert.Equal(t, GameConfig{}, cfg.Game("dice"))

	// 缺省值
	assert.Equal(t, 10, cfg.Scheduler.SettleBatch)
	assert.Equal(t, 500, cfg.Scheduler.SettleTickMs)
	assert.Equal(t, "mpg_round_events", cfg.RocketMQ.TopicEvents)
}

func TestLoadFromFileJSON(t *testing.T) {
	t.Setenv("NACOS_SERVER_ADDR", "")
	t.Setenv("ETCD_ENDPOINTS", "")
	t.Setenv("CONFIG_FILE", writeFile(t, "dev.json", `{"server":{"port":7000},"games":{"roulette":{"duration_sec":15}}}`))

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 15, cfg.Games["roulette"].DurationSec)
}

func TestLoadFailures(t *testing.T) {
	t.Setenv("NACOS_SERVER_ADDR", "")
	t.Setenv("ETCD_ENDPOINTS", "")

	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load(context.Background())
	assert.Error(t, err)

	t.Setenv("CONFIG_FILE", writeFile(t, "dev.toml", "x = 1"))
	_, err = Load(context.Background())
	assert.Error(t, err)
}

func TestParseNacosServers(t *testing.T) {
	servers, err := parseNacosServers("127.0.0.1:8848, 10.0.0.2:8848")
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, "10.0.0.2", servers[1].IpAddr)
	assert.Equal(t, uint64(8848), servers[1].Port)

	_, err = parseNacosServers("bad")
	assert.Error(t, err)
	_, err = parseNacosServers(" , ")
	assert.Error(t, err)
}

func TestCurrent(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	SetCurrent(cfg)
	assert.Same(t, cfg, GetCurrent())
}
