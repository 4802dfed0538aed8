// Package config defines the runtime configuration for sshmux and
// renders it into the ssh options shared by every invocation of a
// session.
package config

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	smerr "sshmux/internal/errors"
	"sshmux/internal/session"
)

// Config holds every tuneable for a single sshmux run.
type Config struct {
	// ── Target ───────────────────────────────────────────────────────
	Host string // [user@]host

	// ── Tools ────────────────────────────────────────────────────────
	SSHPath    string
	SCPPath    string
	ControlDir string

	// ── Connection options ───────────────────────────────────────────
	Options        []string // extra -o values, "Key=Value"
	ReplaceOptions bool     // use Options verbatim instead of the multiplexing defaults
	IdentityFile   string
	Port           int
	KnownHostsPath string
	StrictHostKey  bool
	BatchMode      bool
	ConnectTimeout time.Duration

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
	Stats   bool // print a metrics snapshot on exit
	DryRun  bool // print the resolved options and exit
}

// Defaults returns a Config populated from defaults.go.
func Defaults() *Config {
	return &Config{
		SSHPath:        DefaultSSHPath,
		SCPPath:        DefaultSCPPath,
		ConnectTimeout: DefaultConnectTimeout,
		Verbose:        DefaultVerbosity,
	}
}

// ── Option rendering ─────────────────────────────────────────────────

// SSHOptions renders the configuration as "-o Key=Value" pairs.  The -o
// form is understood by both ssh and scp, unlike -p/-P or -i.
func (c *Config) SSHOptions() []string {
	var out []string
	add := func(kv string) { out = append(out, "-o", kv) }

	if c.Port != 0 {
		add("Port=" + strconv.Itoa(c.Port))
	}
	if c.IdentityFile != "" {
		add("IdentityFile=" + c.IdentityFile)
		add("IdentitiesOnly=yes")
	}
	if c.KnownHostsPath != "" {
		add("UserKnownHostsFile=" + c.KnownHostsPath)
	}
	if c.StrictHostKey {
		add("StrictHostKeyChecking=yes")
	}
	if c.BatchMode {
		add("BatchMode=yes")
	}
	if c.ConnectTimeout > 0 {
		secs := int(c.ConnectTimeout.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		add("ConnectTimeout=" + strconv.Itoa(secs))
	}
	for _, o := range c.Options {
		add(o)
	}
	return out
}

// ── Host-spec parser ─────────────────────────────────────────────────

// ParseHost splits "admin@web1" into user and host.  User may be empty.
// IPv6 addresses are accepted bare or in brackets.  Neither part may
// start with '-'.
func ParseHost(spec string) (user, host string, err error) {
	return session.SplitHost(spec)
}

// ── Validation ───────────────────────────────────────────────────────

// optionRe matches the Key=Value form ssh_config uses on the command line.
var optionRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*=.+$`)

// Validate checks that the configuration is internally consistent and
// that referenced key files parse.
func (c *Config) Validate() error {
	if c.Host != "" {
		if _, _, err := ParseHost(c.Host); err != nil {
			return &smerr.ConfigError{Field: "host", Value: c.Host, Message: err.Error()}
		}
	}
	if strings.TrimSpace(c.SSHPath) == "" {
		return &smerr.ConfigError{Field: "ssh", Message: "path to ssh is required"}
	}
	if strings.TrimSpace(c.SCPPath) == "" {
		return &smerr.ConfigError{Field: "scp", Message: "path to scp is required"}
	}
	if c.Port < 0 || c.Port > 65535 {
		return &smerr.ConfigError{Field: "port", Value: c.Port, Message: "out of range", Hint: "use 1-65535"}
	}
	if c.ConnectTimeout < 0 {
		return &smerr.ConfigError{Field: "connect-timeout", Value: c.ConnectTimeout, Message: "must not be negative"}
	}
	for _, o := range c.Options {
		if !optionRe.MatchString(o) {
			return &smerr.ConfigError{
				Field:   "option",
				Value:   o,
				Message: "expected Key=Value",
				Hint:    "e.g. -o ServerAliveInterval=15",
			}
		}
	}
	if c.ReplaceOptions {
		cp, ok := controlPath(c.Options)
		switch {
		case !ok:
			return &smerr.ConfigError{
				Field:   "replace-options",
				Message: "replacement options must set ControlPath",
				Hint:    "include -o ControlPath=/tmp/sshmux-%tag%.sock so the session can be found and closed",
			}
		case !strings.Contains(cp, session.TagPlaceholder):
			return &smerr.ConfigError{
				Field:   "option",
				Value:   "ControlPath=" + cp,
				Message: "ControlPath must contain " + session.TagPlaceholder,
				Hint:    "the tag is how the control process is found and closed",
			}
		}
	}
	if c.IdentityFile != "" {
		if err := CheckIdentity(c.IdentityFile); err != nil {
			return &smerr.ConfigError{Field: "identity", Value: c.IdentityFile, Message: err.Error()}
		}
	}
	if c.KnownHostsPath != "" {
		if err := CheckKnownHosts(c.KnownHostsPath); err != nil {
			return &smerr.ConfigError{Field: "known-hosts", Value: c.KnownHostsPath, Message: err.Error()}
		}
	}
	return nil
}

// controlPath returns the value of the first ControlPath option, the
// one ssh uses.
func controlPath(opts []string) (string, bool) {
	for _, o := range opts {
		if strings.HasPrefix(strings.ToLower(o), "controlpath=") {
			return o[len("controlpath="):], true
		}
	}
	return "", false
}
