package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	mu    sync.Mutex
	cache = map[reflect.Type]any{}

	dotenvOnce sync.Once
)

// LoadEnv reads the given dotenv files into the process environment.
// Variables already set are kept. Without paths it reads ./.env.
func LoadEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrEnvFile, err)
	}
	return nil
}

// Load parses environment variables into v using its env struct tags.
// Each config type is parsed once; later calls receive the cached copy.
// A ./.env file is read, if present, before the first parse.
//
//	type LockConfig struct {
//		Strategy string        `env:"LOCK_STRATEGY" envDefault:"none"`
//		TTL      time.Duration `env:"LOCK_TTL" envDefault:"30s"`
//	}
//
//	var cfg LockConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	dotenvOnce.Do(func() {
		// a missing .env file is fine
		_ = godotenv.Load()
	})

	key := reflect.TypeFor[T]()

	mu.Lock()
	defer mu.Unlock()

	if cached, ok := cache[key]; ok {
		*v = cached.(T)
		return nil
	}

	var parsed T
	if err := env.Parse(&parsed); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	cache[key] = parsed
	*v = parsed
	return nil
}

// MustLoad is like Load but panics on error.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// Reset drops every cached config so the next Load parses the environment again.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	clear(cache)
}
