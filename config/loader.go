package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the SSHMUX_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := env("SSH"); v != "" {
		cfg.SSHPath = v
	}
	if v := env("SCP"); v != "" {
		cfg.SCPPath = v
	}
	if v := env("CONTROL_DIR"); v != "" {
		cfg.ControlDir = v
	}
	if v := env("OPTIONS"); v != "" {
		// Comma-separated Key=Value list.
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.Options = append(cfg.Options, o)
			}
		}
	}
	if v := env("IDENTITY"); v != "" {
		cfg.IdentityFile = v
	}
	if v := envInt("PORT"); v > 0 {
		cfg.Port = v
	}
	if v := env("KNOWN_HOSTS"); v != "" {
		cfg.KnownHostsPath = v
	}
	if envBool("STRICT_HOSTKEY") {
		cfg.StrictHostKey = true
	}
	if envBool("BATCH") {
		cfg.BatchMode = true
	}
	if v := envInt("CONNECT_TIMEOUT"); v > 0 {
		cfg.ConnectTimeout = secondsDuration(v)
	}

	// Output
	if v := envInt("VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if envBool("STATS") {
		cfg.Stats = true
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func env(key string) string {
	return os.Getenv(EnvPrefix + key)
}

func envInt(key string) int {
	v := env(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(env(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
