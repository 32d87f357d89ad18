package app

import (
	"fmt"
	"time"

	"acdmx.com/internal/api"
	"acdmx.com/internal/engine"
	"acdmx.com/internal/platform"
	"acdmx.com/pkg/orm"
	"acdmx.com/pkg/ratelimit"
	"acdmx.com/pkg/trace"
	"acdmx.com/pkg/xredis"
	"github.com/ethereum/go-ethereum/common"
)

const ServiceName = "platform-service"

// Config 总配置，对应 config/platform-service.yaml
type Config struct {
	Name       string           `mapstructure:"name"`
	LogLevel   string           `mapstructure:"log_level"`
	LogFile    string           `mapstructure:"log_file"`
	PprofAddr  string           `mapstructure:"pprof_addr"` // 空则不开
	HTTP       api.Config       `mapstructure:"http"`
	Platform   PlatformConfig   `mapstructure:"platform"`
	Engine     engine.Config    `mapstructure:"engine"`
	DB         DBConfig         `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Broker     BrokerConfig     `mapstructure:"broker"`
	Breaker    ratelimit.Rule   `mapstructure:"breaker"`
	Trace      trace.Config     `mapstructure:"trace"`
	Governance GovernanceConfig `mapstructure:"governance"`
}

type PlatformConfig struct {
	Self          string             `mapstructure:"self"`
	Owner         string             `mapstructure:"owner"`
	Editor        string             `mapstructure:"editor"` // 为空时用治理地址
	RoundDuration time.Duration      `mapstructure:"round_duration"`
	Fractions     platform.Fractions `mapstructure:"fractions"`
}

type DBConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	orm.Config `mapstructure:",squash"`
}

type RedisConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	xredis.Config `mapstructure:",squash"`
	MasterLock    bool          `mapstructure:"master_lock"` // 同一部署只允许一个写实例
	LockKey       string        `mapstructure:"lock_key"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	CachePrefix   string        `mapstructure:"cache_prefix"`
}

type BrokerConfig struct {
	Driver string `mapstructure:"driver"` // nats / mem，空则不转发
	URL    string `mapstructure:"url"`
}

type GovernanceConfig struct {
	Address string `mapstructure:"address"`
}

// platformConfig 解析地址并补默认值
func (c *Config) platformConfig() (platform.Config, common.Address, error) {
	var (
		out platform.Config
		gov common.Address
	)
	parse := func(name, s string, required bool) (common.Address, error) {
		if s == "" && !required {
			return common.Address{}, nil
		}
		if !common.IsHexAddress(s) {
			return common.Address{}, fmt.Errorf("config: %s %q is not an address", name, s)
		}
		return common.HexToAddress(s), nil
	}
	var err error
	if out.Self, err = parse("platform.self", c.Platform.Self, true); err != nil {
		return out, gov, err
	}
	if out.Owner, err = parse("platform.owner", c.Platform.Owner, true); err != nil {
		return out, gov, err
	}
	if out.Editor, err = parse("platform.editor", c.Platform.Editor, false); err != nil {
		return out, gov, err
	}
	if gov, err = parse("governance.address", c.Governance.Address, false); err != nil {
		return out, gov, err
	}
	if out.Editor == (common.Address{}) {
		out.Editor = gov
	}
	out.RoundDuration = c.Platform.RoundDuration
	out.Fractions = c.Platform.Fractions
	if out.Fractions == (platform.Fractions{}) {
		out.Fractions = platform.DefaultFractions()
	}
	for _, v := range []uint64{out.Fractions.SaleRef1, out.Fractions.SaleRef2, out.Fractions.TradeRef1, out.Fractions.TradeRef2} {
		if v >= platform.FractionBase {
			return out, gov, fmt.Errorf("config: reward fraction %d must be below %d", v, platform.FractionBase)
		}
	}
	return out, gov, nil
}
