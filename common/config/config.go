package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Conf 全局配置，Load 成功后可读
var Conf *Configuration

type Configuration struct {
	AppName    string   `mapstructure:"appName"`
	Port       int      `mapstructure:"port"`       // websocket 监听端口
	MetricPort int      `mapstructure:"metricPort"` // 监控端口（statsviz）
	LogConf    LogConf  `mapstructure:"log"`
	GameConf   GameConf `mapstructure:"game"`
}

type LogConf struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

// GameConf 对局节奏相关参数，单位见字段注释
type GameConf struct {
	TurnSeconds      int `mapstructure:"turnSeconds"`      // 回合倒计时（秒），上限 60
	ClaimSeconds     int `mapstructure:"claimSeconds"`     // 鸣牌决策倒计时（秒）
	AiThinkMinMs     int `mapstructure:"aiThinkMinMs"`     // AI 思考下界（毫秒）
	AiThinkMaxMs     int `mapstructure:"aiThinkMaxMs"`     // AI 思考上界（毫秒）
	NextRoundSeconds int `mapstructure:"nextRoundSeconds"` // 局间倒计时（秒）
	EmptyRoomSeconds int `mapstructure:"emptyRoomSeconds"` // 空房间回收（秒）
}

// Default 返回缺省配置
func Default() *Configuration {
	return &Configuration{
		AppName:    "xqmahjong",
		Port:       3001,
		MetricPort: 5300,
		LogConf:    LogConf{Level: "info"},
		GameConf: GameConf{
			TurnSeconds:      30,
			ClaimSeconds:     30,
			AiThinkMinMs:     700,
			AiThinkMaxMs:     2000,
			NextRoundSeconds: 10,
			EmptyRoomSeconds: 60,
		},
	}
}

// Load 读取配置文件并应用环境变量覆盖
// onChange 在配置文件热更新后回调（可为 nil）
func Load(configFile string, onChange func(*Configuration)) error {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.ReadInConfig(); err != nil {
		return err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	Conf = cfg

	v.WatchConfig()
	v.OnConfigChange(func(in fsnotify.Event) {
		next := Default()
		if err := v.Unmarshal(next); err != nil {
			return
		}
		if err := next.validate(); err != nil {
			return
		}
		Conf = next
		if onChange != nil {
			onChange(next)
		}
	})

	return nil
}

func (c *Configuration) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("非法监听端口: %d", c.Port)
	}
	if c.GameConf.TurnSeconds <= 0 || c.GameConf.TurnSeconds > 60 {
		return fmt.Errorf("turnSeconds 超出范围 (1..60): %d", c.GameConf.TurnSeconds)
	}
	if c.GameConf.AiThinkMinMs <= 0 || c.GameConf.AiThinkMaxMs < c.GameConf.AiThinkMinMs {
		return fmt.Errorf("AI 思考区间非法: [%d, %d]", c.GameConf.AiThinkMinMs, c.GameConf.AiThinkMaxMs)
	}
	if c.LogConf.Path != "" {
		if err := os.MkdirAll(c.LogConf.Path, 0o755); err != nil {
			return fmt.Errorf("创建日志目录失败: %v", err)
		}
	}
	return nil
}
