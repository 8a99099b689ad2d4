package config

import "github.com/spf13/viper"

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	Telegram struct {
		Token       string
		AdminChatID int64 `mapstructure:"admin_chat_id"`
	} `mapstructure:"telegram"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Sweep struct {
		// Интервал пересчёта статусов абонементов (EXPIRED/EXHAUSTED).
		StatusInterval string `mapstructure:"status_interval"`
		// Интервал поиска осиротевших резервов (RESERVED без живой брони).
		ReconcileInterval string `mapstructure:"reconcile_interval"`
	} `mapstructure:"sweep"`
}

func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	v.SetDefault("sweep.status_interval", "10m")
	v.SetDefault("sweep.reconcile_interval", "30m")

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}
