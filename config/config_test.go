package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.Equal(t, "ssh", cfg.SSHPath)
	require.Equal(t, "scp", cfg.SCPPath)
	require.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	require.NoError(t, cfg.Validate())
}

func TestSSHOptions(t *testing.T) {
	cfg := &Config{
		Port:           2222,
		IdentityFile:   "/keys/id",
		KnownHostsPath: "/kh",
		StrictHostKey:  true,
		BatchMode:      true,
		ConnectTimeout: 1500 * time.Millisecond,
		Options:        []string{"ServerAliveInterval=15"},
	}
	require.Equal(t, []string{
		"-o", "Port=2222",
		"-o", "IdentityFile=/keys/id",
		"-o", "IdentitiesOnly=yes",
		"-o", "UserKnownHostsFile=/kh",
		"-o", "StrictHostKeyChecking=yes",
		"-o", "BatchMode=yes",
		"-o", "ConnectTimeout=2",
		"-o", "ServerAliveInterval=15",
	}, cfg.SSHOptions())
}

func TestSSHOptions_Empty(t *testing.T) {
	require.Empty(t, (&Config{}).SSHOptions())
	require.Equal(t, []string{"-o", "ConnectTimeout=1"},
		(&Config{ConnectTimeout: 100 * time.Millisecond}).SSHOptions())
}

func TestParseHost(t *testing.T) {
	tests := []struct {
		spec     string
		user     string
		host     string
		wantFail bool
	}{
		{spec: "web1", host: "web1"},
		{spec: "admin@web1.example.com", user: "admin", host: "web1.example.com"},
		{spec: "deploy@10.0.0.7", user: "deploy", host: "10.0.0.7"},
		{spec: "", wantFail: true},
		{spec: "a@b@c", wantFail: true},
		{spec: "web1:22", wantFail: true},
		{spec: "two words", wantFail: true},
		{spec: "::1", host: "::1"},
		{spec: "admin@[fe80::1]", user: "admin", host: "fe80::1"},
		{spec: "[web1]", wantFail: true},
		{spec: "-oProxyCommand=touch${IFS}pwned", wantFail: true},
		{spec: "-oProxyCommand=x@web1", wantFail: true},
		{spec: "admin@-oProxyCommand=x", wantFail: true},
		{spec: "@web1", wantFail: true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			user, host, err := ParseHost(tt.spec)
			if tt.wantFail {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.user, user)
			require.Equal(t, tt.host, host)
		})
	}
}

// TestValidate_ErrorMessages verifies that Validate returns actionable
// error messages.
func TestValidate_ErrorMessages(t *testing.T) {
	base := func() Config { return *Defaults() }
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"bad host", func(c *Config) { c.Host = "a b" }, "--host"},
		{"no ssh", func(c *Config) { c.SSHPath = " " }, "path to ssh is required"},
		{"no scp", func(c *Config) { c.SCPPath = "" }, "path to scp is required"},
		{"port", func(c *Config) { c.Port = 70000 }, "hint: use 1-65535"},
		{"timeout", func(c *Config) { c.ConnectTimeout = -time.Second }, "must not be negative"},
		{"option form", func(c *Config) { c.Options = []string{"-v"} }, "expected Key=Value"},
		{"replace without path", func(c *Config) {
			c.ReplaceOptions = true
			c.Options = []string{"ControlMaster=auto"}
		}, "must set ControlPath"},
		{"replace path without tag", func(c *Config) {
			c.ReplaceOptions = true
			c.Options = []string{"ControlMaster=auto", "ControlPath=/tmp/fixed.sock", "ControlPath=/tmp/%tag%"}
		}, "ControlPath must contain %tag%"},
		{"host option injection", func(c *Config) { c.Host = "-oProxyCommand=touch${IFS}pwned" }, "not starting with '-'"},
		{"identity missing", func(c *Config) { c.IdentityFile = filepath.Join(t.TempDir(), "nope") }, "reading key"},
		{"known hosts missing", func(c *Config) { c.KnownHostsPath = filepath.Join(t.TempDir(), "nope") }, "known_hosts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), tt.wantSub), "error %q should contain %q", err, tt.wantSub)
		})
	}
}

func TestValidate_ReplaceOptionsOK(t *testing.T) {
	cfg := Defaults()
	cfg.ReplaceOptions = true
	cfg.Options = []string{"ControlMaster=auto", "ControlPath=/tmp/x-%tag%.sock"}
	require.NoError(t, cfg.Validate())
}
