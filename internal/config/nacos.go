package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/pkg/errors"
)

// nacosParams 从环境变量读取 Nacos 连接参数
//   - NACOS_SERVER_ADDR: 服务器地址（必填，多个用逗号分隔，如 "127.0.0.1:8848"）
//   - NACOS_DATA_ID: 配置 Data ID（必填，如 "mpg-server.yaml"）
//   - NACOS_NAMESPACE: 命名空间 ID（默认 public）
//   - NACOS_GROUP: 配置分组（默认 DEFAULT_GROUP）
//   - NACOS_USERNAME / NACOS_PASSWORD: 认证（可选）
//   - NACOS_TIMEOUT_MS: 超时时间（默认 5000）
type nacosParams struct {
	servers   []constant.ServerConfig
	dataID    string
	namespace string
	group     string
	username  string
	password  string
	timeoutMS uint64
}

func nacosParamsFromEnv() (*nacosParams, error) {
	p := &nacosParams{
		dataID:    strings.TrimSpace(os.Getenv("NACOS_DATA_ID")),
		namespace: getEnvOrDefault("NACOS_NAMESPACE", "public"),
		group:     getEnvOrDefault("NACOS_GROUP", "DEFAULT_GROUP"),
		username:  strings.TrimSpace(os.Getenv("NACOS_USERNAME")),
		password:  strings.TrimSpace(os.Getenv("NACOS_PASSWORD")),
		timeoutMS: 5000,
	}
	if p.dataID == "" {
		return nil, errors.New("NACOS_DATA_ID not set")
	}
	if v := strings.TrimSpace(os.Getenv("NACOS_TIMEOUT_MS")); v != "" {
		if t, err := strconv.ParseUint(v, 10, 64); err == nil && t > 0 {
			p.timeoutMS = t
		}
	}
	servers, err := parseNacosServers(os.Getenv("NACOS_SERVER_ADDR"))
	if err != nil {
		return nil, err
	}
	p.servers = servers
	return p, nil
}

// parseNacosServers 解析 host:port 列表
func parseNacosServers(addr string) ([]constant.ServerConfig, error) {
	var out []constant.ServerConfig
	for _, a := range strings.Split(addr, ",") {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		parts := strings.Split(a, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid NACOS_SERVER_ADDR format: %s (expected host:port)", a)
		}
		port, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid port in NACOS_SERVER_ADDR: %s", parts[1])
		}
		out = append(out, constant.ServerConfig{IpAddr: parts[0], Port: port})
	}
	if len(out) == 0 {
		return nil, errors.New("no valid server address in NACOS_SERVER_ADDR")
	}
	return out, nil
}

func newNacosClient(p *nacosParams) (config_client.IConfigClient, error) {
	cc := constant.ClientConfig{
		NamespaceId:         p.namespace,
		TimeoutMs:           p.timeoutMS,
		NotLoadCacheAtStart: true,
		LogDir:              "/tmp/nacos/log",
		CacheDir:            "/tmp/nacos/cache",
		LogLevel:            "warn",
	}
	if p.username != "" && p.password != "" {
		cc.Username = p.username
		cc.Password = p.password
	}
	client, err := clients.NewConfigClient(vo.NacosClientParam{
		ClientConfig:  &cc,
		ServerConfigs: p.servers,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create nacos config client")
	}
	return client, nil
}

// loadFromNacos 从 Nacos 配置中心加载配置
func loadFromNacos() (*Config, error) {
	p, err := nacosParamsFromEnv()
	if err != nil {
		return nil, err
	}
	client, err := newNacosClient(p)
	if err != nil {
		return nil, err
	}
	content, err := client.GetConfig(vo.ConfigParam{DataId: p.dataID, Group: p.group})
	if err != nil {
		return nil, errors.Wrap(err, "get config from nacos")
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("nacos config is empty: dataId=%s, group=%s", p.dataID, p.group)
	}
	return parse(p.dataID, []byte(content))
}
