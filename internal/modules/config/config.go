package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	strategiesPathENV = "CONFIG_FILE"
	secretsPathENV    = "SECRETS_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
	kisAppKeyENV      = "KIS_APP_KEY"
	kisAppSecretENV   = "KIS_APP_SECRET"
	kisAccountENV     = "KIS_ACCOUNT_NO"
)

type TelegramConfig struct {
	Token            string
	ChatID           int64
	EnableTradeAlert bool
}

type KISConfig struct {
	AppKey    string
	AppSecret string
	AccountNo string // "XXXXXXXX-XX"
	EnvType   string // "paper" | "prod"
	TPSLimit  float64
}

type TracingConfig struct {
	Host string
	Port int
}

type SystemConfig struct {
	Universe       []string // manual watch universe (6-digit KRX codes)
	SyncInterval   time.Duration
	PollInterval   time.Duration
	EntryStartTime string // "HHMMSS", do not trade the volatile open before this
}

// Config — без дефолтов риска здесь: риск/сайзинг живут в common и в секциях
// стратегий как плоские ключи (stop_loss_pct и т.д.).
type Config struct {
	strategiesPath string

	System   SystemConfig
	Telegram TelegramConfig
	KIS      KISConfig
	Tracing  TracingConfig
	DB       string

	ActiveStrategy string
	Common         Values
	Strategies     map[string]Values
}

func NewConfig() (*Config, error) {
	strategiesPath := os.Getenv(strategiesPathENV)
	if strategiesPath == "" {
		strategiesPath = "configs/strategies.yaml"
	}
	secretsPath := os.Getenv(secretsPathENV)
	if secretsPath == "" {
		secretsPath = "configs/secrets.yaml"
	}

	v := viper.New()
	v.SetConfigFile(strategiesPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read strategies config")
	}

	// secrets.yaml необязателен: prod кладёт ключи в env
	v.SetConfigFile(secretsPath)
	if err := v.MergeInConfig(); err != nil {
		if _, statErr := os.Stat(secretsPath); statErr == nil {
			return nil, errors.Wrap(err, "merge secrets config")
		}
	}

	cfg := &Config{
		strategiesPath: strategiesPath,
		System: SystemConfig{
			Universe:       v.GetStringSlice("system.universe"),
			SyncInterval:   durationDefault(v.GetString("system.sync_interval"), 5*time.Second),
			PollInterval:   durationDefault(v.GetString("system.poll_interval"), 3*time.Second),
			EntryStartTime: stringDefault(v.GetString("system.entry_start_time"), "090000"),
		},
		Telegram: TelegramConfig{
			Token:            v.GetString("system.telegram.bot_token"),
			ChatID:           v.GetInt64("system.telegram.chat_id"),
			EnableTradeAlert: v.GetBool("system.telegram.enable_trade_alert"),
		},
		KIS: KISConfig{
			AppKey:    v.GetString("system.kis.app_key"),
			AppSecret: v.GetString("system.kis.app_secret"),
			AccountNo: v.GetString("system.kis.account_no"),
			EnvType:   stringDefault(v.GetString("system.env_type"), "paper"),
			TPSLimit:  floatDefault(v.GetFloat64("system.tps_limit"), 2.0),
		},
		Tracing: TracingConfig{
			Host: stringDefault(v.GetString("system.tracing.host"), "localhost"),
			Port: intDefault(v.GetInt("system.tracing.port"), 6831),
		},
		DB:             v.GetString("db_dsn"),
		ActiveStrategy: v.GetString("active_strategy"),
		Common:         Values(v.GetStringMap("common")),
		Strategies:     map[string]Values{},
	}

	for _, id := range []string{"ma_trend", "breakout", "bollinger_mr", "vwap_scalp"} {
		if m := v.GetStringMap(id); len(m) > 0 {
			cfg.Strategies[id] = Values(m)
		}
	}

	// env поверх файлов
	if tok := os.Getenv(tokenTelegramENV); tok != "" {
		cfg.Telegram.Token = tok
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		cfg.DB = dsn
	}
	if k := os.Getenv(kisAppKeyENV); k != "" {
		cfg.KIS.AppKey = k
	}
	if s := os.Getenv(kisAppSecretENV); s != "" {
		cfg.KIS.AppSecret = s
	}
	if a := os.Getenv(kisAccountENV); a != "" {
		cfg.KIS.AccountNo = a
	}

	if cfg.ActiveStrategy == "" {
		return nil, errors.New("active_strategy is not set")
	}
	return cfg, nil
}

// StrategyValues — плоский словарь для инстанса стратегии: common,
// перекрытый секцией стратегии, плюс служебные ключи.
func (c *Config) StrategyValues(id string) Values {
	vals := c.Common.Merge(c.Strategies[id])
	vals["id"] = id
	if _, ok := vals["entry_start_time"]; !ok {
		vals["entry_start_time"] = c.System.EntryStartTime
	}
	if _, ok := vals["is_simulation"]; !ok {
		vals["is_simulation"] = false
	}
	return vals
}

// UpdateStrategyConfig — горячее обновление секции стратегии (применяется на
// следующем рестарте движка) с записью обратно в strategies.yaml.
func (c *Config) UpdateStrategyConfig(id string, patch Values) error {
	cur, ok := c.Strategies[id]
	if !ok {
		return errors.Errorf("strategy config %s not found", id)
	}
	c.Strategies[id] = cur.Merge(patch)
	return c.save()
}

// save пишет нечувствительную часть конфига назад (секреты не трогаем).
func (c *Config) save() error {
	out := map[string]any{
		"system": map[string]any{
			"universe":         c.System.Universe,
			"sync_interval":    c.System.SyncInterval.String(),
			"poll_interval":    c.System.PollInterval.String(),
			"entry_start_time": c.System.EntryStartTime,
			"env_type":         c.KIS.EnvType,
			"tps_limit":        c.KIS.TPSLimit,
		},
		"active_strategy": c.ActiveStrategy,
		"common":          map[string]any(c.Common),
	}
	for id, vals := range c.Strategies {
		section := make(map[string]any, len(vals))
		for k, val := range vals {
			section[k] = val
		}
		delete(section, "id")
		out[id] = section
	}

	bs, err := yaml.Marshal(out)
	if err != nil {
		return errors.Wrap(err, "marshal config to yaml")
	}
	if err := os.WriteFile(c.strategiesPath, bs, 0o644); err != nil {
		return errors.Wrap(err, "write strategies config")
	}
	return nil
}

func stringDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func floatDefault(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

func intDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func durationDefault(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
