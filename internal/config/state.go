package config

import (
	"sync/atomic"
)

// 原子存储当前生效的配置，供各业务读取
var current atomic.Pointer[Config]

func SetCurrent(c *Config) {
	current.Store(c)
}

func GetCurrent() *Config {
	return current.Load()
}
