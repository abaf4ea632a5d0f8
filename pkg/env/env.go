// Package env provides the shared configuration helpers of feeder programs.
package env

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v6"
	"github.com/denisbrodbeck/machineid"
	"gopkg.in/yaml.v3"
)

// Version is the firmware version reported by Identify.
var Version = "1.0.0"

// MachineID retrieves an ID identifying this machine, scoped to feeder
// controllers. It falls back to the hostname.
func MachineID() string {
	id, err := machineid.ProtectedID("feeder")
	if err == nil && len(id) > 12 {
		return id[:12]
	}
	if host, herr := os.Hostname(); herr == nil {
		return host
	}
	return "feeder"
}

// ParseEnv overrides fields of conf from environment variables.
func ParseEnv(conf interface{}) error {
	return env.Parse(conf)
}

// LoadFile overrides fields of conf from a YAML file.
func LoadFile(fn string, conf interface{}) error {
	data, err := os.ReadFile(fn)
	if err != nil {
		return err
	}
	if err = yaml.Unmarshal(data, conf); err != nil {
		return fmt.Errorf("parse %s: %w", fn, err)
	}
	return nil
}
