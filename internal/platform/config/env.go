// Package config loads opsbot process configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	return parse(target, env.Options{})
}

// ParseEnvMap loads configuration from values instead of the process
// environment. Unset keys fall back to envDefault tags.
func ParseEnvMap(target any, values map[string]string) error {
	if values == nil {
		values = map[string]string{}
	}
	return parse(target, env.Options{Environment: values})
}

func parse(target any, opts env.Options) error {
	if err := env.ParseWithOptions(target, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
