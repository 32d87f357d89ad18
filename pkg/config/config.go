package config

import (
	"log"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量统一前缀，例如 ACDM_HTTP_ADDR 覆盖 http.addr
const EnvPrefix = "ACDM"

// Options 控制配置来源
type Options struct {
	Paths    []string // 搜索目录，默认 ./config 和 .
	File     string   // 指定文件时忽略 Paths
	OnChange func()   // 热更新成功后回调
}

// LoadAndWatch 约定：config/{service}.yaml
func LoadAndWatch(service string, out interface{}, opts ...Options) (*viper.Viper, error) {
	var opt Options
	if len(opts) > 0 {
		opt = opts[0]
	}
	v := viper.New()
	if opt.File != "" {
		v.SetConfigFile(opt.File)
	} else {
		v.SetConfigName(service)
		v.SetConfigType("yaml")
		paths := opt.Paths
		if len(paths) == 0 {
			paths = []string{"./config", "."}
		}
		for _, p := range paths {
			v.AddConfigPath(p)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(out); err != nil {
		return nil, err
	}
	log.Printf("[%s] config loaded from %s", service, v.ConfigFileUsed())

	// 热更新写同一个 out，回调里自行挑需要生效的字段
	var mu sync.Mutex
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		mu.Lock()
		defer mu.Unlock()
		log.Printf("[%s] config file changed: %s", service, e.Name)
		if err := v.Unmarshal(out); err != nil {
			log.Printf("[%s] reload config error: %v", service, err)
			return
		}
		if opt.OnChange != nil {
			opt.OnChange()
		}
		log.Printf("[%s] config reloaded OK", service)
	})

	return v, nil
}
