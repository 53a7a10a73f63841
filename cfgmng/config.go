package cfgmng

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

type loader struct {
	v        *viper.Viper
	optional bool
}

type Option func(*loader)

// WithDefaults registers defaults under dotted keys. Only keys known to
// viper can be overridden from the environment, so every setting needs one.
func WithDefaults(defaults map[string]any) Option {
	return func(l *loader) {
		for key, value := range defaults {
			l.v.SetDefault(key, value)
		}
	}
}

// WithEnvPrefix maps key a.b to PREFIX_A_B
func WithEnvPrefix(prefix string) Option {
	return func(l *loader) {
		l.v.SetEnvPrefix(prefix)
	}
}

// WithOptionalFile accepts a missing config file
func WithOptionalFile() Option {
	return func(l *loader) {
		l.optional = true
	}
}

func LoadConfig[T any](path string, filename string, opts ...Option) (*T, error) {
	l := &loader{v: viper.New()}
	l.v.AddConfigPath(path)
	l.v.SetConfigName(filename)
	l.v.SetConfigType("yaml")
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, opt := range opts {
		opt(l)
	}
	l.v.AutomaticEnv()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !l.optional || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg T
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
