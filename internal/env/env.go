// Package env reads the deployment environment from PARROT_ENV.
package env

import (
	"os"
	"strings"
)

// Variable is the environment variable consulted by FromEnv.
const Variable = "PARROT_ENV"

// Environment selects logging defaults.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// FromEnv returns Production when PARROT_ENV is "production" or "prod",
// Development otherwise.
func FromEnv() Environment {
	return Parse(os.Getenv(Variable))
}

// Parse maps a raw value to an Environment.
func Parse(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "production", "prod":
		return Production
	default:
		return Development
	}
}

func (e Environment) IsProduction() bool { return e == Production }
