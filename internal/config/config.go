package config

import (
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	Secret     string `mapstructure:"secret"`
	LogLevel   string `mapstructure:"log_level"`
	Locale     string `mapstructure:"locale"`
	GatewayURL string `mapstructure:"gateway_url"`
	APIBaseURL string `mapstructure:"api_base_url"`
	AppID      string `mapstructure:"app_id"`

	Room   RoomConfig   `mapstructure:"room"`
	User   UserConfig   `mapstructure:"user"`
	Timers TimersConfig `mapstructure:"timers"`
	Media  MediaConfig  `mapstructure:"media"`
}

type RoomConfig struct {
	Name string `mapstructure:"name"`
	Type int    `mapstructure:"type"`
}

type UserConfig struct {
	UUID string `mapstructure:"uuid"`
	Name string `mapstructure:"name"`
	Role string `mapstructure:"role"`
}

type TimersConfig struct {
	ClockPeriod     time.Duration `mapstructure:"clock_period"`
	TickDuration    time.Duration `mapstructure:"tick_duration"`
	TickStep        time.Duration `mapstructure:"tick_step"`
	DelayStep       time.Duration `mapstructure:"delay_step"`
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
	QueueSize       int           `mapstructure:"queue_size"`
	ChatLimit       int           `mapstructure:"chat_limit"`
}

type MediaConfig struct {
	Camera     bool     `mapstructure:"camera"`
	Microphone bool     `mapstructure:"microphone"`
	ICEServers []string `mapstructure:"ice_servers"`
}

// Load reads config/config.<CONFIG_ENV>.yaml, "dev" when unset.
func Load() (*Config, *viper.Viper, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads one yaml file on top of the defaults. A missing file is not
// an error.
func LoadFile(fileName string) (*Config, *viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Err(err).Str("module", "config").Str("file", fileName).Msg("config file not loaded, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("room", cfg.Room.Name).Str("role", cfg.User.Role).Msg("config ready")
	return &cfg, v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("secret", "change-me")
	v.SetDefault("log_level", "info")
	v.SetDefault("locale", "en")
	v.SetDefault("gateway_url", "ws://localhost:9000/gateway")
	v.SetDefault("api_base_url", "http://localhost:9000/api")
	v.SetDefault("room.type", 1)
	v.SetDefault("user.role", "student")
	v.SetDefault("timers.clock_period", "500ms")
	v.SetDefault("timers.tick_duration", "3s")
	v.SetDefault("timers.tick_step", "1s")
	v.SetDefault("timers.delay_step", "1s")
	v.SetDefault("timers.dispatch_timeout", "10s")
	v.SetDefault("timers.queue_size", 64)
	v.SetDefault("timers.chat_limit", 5)
	v.SetDefault("media.camera", true)
	v.SetDefault("media.microphone", true)
	v.SetDefault("media.ice_servers", []string{"stun:stun.l.google.com:19302"})
}

// ParseLevel falls back to info on an unknown level.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// WatchLogLevel applies log_level edits to the global logger while running.
func WatchLogLevel(v *viper.Viper) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		lvl := ParseLevel(v.GetString("log_level"))
		zerolog.SetGlobalLevel(lvl)
		log.Info().Str("module", "config").Str("file", e.Name).Str("level", lvl.String()).Msg("config changed")
	})
	v.WatchConfig()
}
