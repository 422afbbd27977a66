package viper

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	spfviper "github.com/spf13/viper"
)

// Config 封装 spf13/viper 实例，按 默认值 < 配置文件 < 环境变量 < 命令行参数 的优先级合并配置。
type Config struct {
	v *spfviper.Viper
}

// New 创建一个空的 Config。
func New() *Config {
	return &Config{
		v: spfviper.New(),
	}
}

var configTypes = map[string]string{
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
}

// LoadFile 按扩展名加载 YAML 或 JSON 配置文件，其它扩展名返回错误。
func (c *Config) LoadFile(path string) error {
	typ, ok := configTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return errors.Newf("unsupported config file extension %q", filepath.Ext(path))
	}
	c.v.SetConfigFile(path)
	c.v.SetConfigType(typ)
	if err := c.v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "read config %s", path)
	}
	return nil
}

// BindEnv 以 prefix 为前缀读取环境变量，键中的 "." 与 "-" 替换为 "_"。
// 例如 prefix 为 TRANSIT 时，log.level 对应 TRANSIT_LOG_LEVEL。
func (c *Config) BindEnv(prefix string) {
	c.v.SetEnvPrefix(prefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	c.v.AutomaticEnv()
}

// BindFlags 绑定命令行参数，flag 名即配置键。只有被显式设置的 flag 会覆盖配置文件。
func (c *Config) BindFlags(fs *pflag.FlagSet) error {
	return c.v.BindPFlags(fs)
}

// SetDefault 设置 key 的默认值。
func (c *Config) SetDefault(key string, value any) {
	c.v.SetDefault(key, value)
}

func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// Unmarshal 将完整配置反序列化到 dst。
// dst 应为结构体或 map 的指针，字段通过 mapstructure tag 映射。
func (c *Config) Unmarshal(dst any) error {
	return c.v.Unmarshal(dst)
}

// UnmarshalKey 将指定 key 对应的子配置反序列化到 dst。
func (c *Config) UnmarshalKey(key string, dst any) error {
	return c.v.UnmarshalKey(key, dst)
}
