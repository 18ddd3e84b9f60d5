package config

import (
	"os"
	"strings"

	log "mpg-server/common/logger"

	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// StartWatch 监听 Nacos 配置变化，在变更时回调 onChange(old, new)
// 未配置 Nacos（使用本地文件或 Etcd）时跳过监听
func StartWatch(onChange func(oldCfg, newCfg *Config)) error {
	if strings.TrimSpace(os.Getenv("NACOS_SERVER_ADDR")) == "" {
		log.Info("[Config] Nacos 未配置，跳过配置监听")
		return nil
	}
	p, err := nacosParamsFromEnv()
	if err != nil {
		return err
	}
	client, err := newNacosClient(p)
	if err != nil {
		return err
	}

	err = client.ListenConfig(vo.ConfigParam{
		DataId: p.dataID,
		Group:  p.group,
		OnChange: func(namespace, group, dataId, data string) {
			newCfg, err := parse(dataId, []byte(data))
			if err != nil {
				log.Warn("[Config] 解析 Nacos 配置失败", zap.String("dataId", dataId), zap.Error(err))
				return
			}
			newCfg.ApplyDefaults()
			oldCfg := GetCurrent()
			SetCurrent(newCfg)
			if onChange != nil {
				onChange(oldCfg, newCfg)
			}
			log.Info("[Config] Nacos 配置已更新", zap.String("namespace", namespace), zap.String("group", group), zap.String("dataId", dataId))
		},
	})
	if err != nil {
		return errors.Wrap(err, "listen nacos config")
	}
	log.Info("[Config] Nacos 配置监听已启动", zap.String("dataId", p.dataID), zap.String("group", p.group))
	return nil
}

// ApplyReload 热更新可在运行时生效的配置项
func ApplyReload(oldCfg, newCfg *Config) {
	if newCfg == nil {
		return
	}
	if oldCfg == nil || oldCfg.Server.LogLevel != newCfg.Server.LogLevel {
		log.SetLevel(newCfg.Server.LogLevel)
		log.Info("[Config] log level changed", zap.String("level", newCfg.Server.LogLevel))
	}
}
