package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultSSHPath is the remote-access tool looked up on $PATH.
	DefaultSSHPath = "ssh"

	// DefaultSCPPath is the secure-copy tool looked up on $PATH.
	DefaultSCPPath = "scp"

	// DefaultConnectTimeout is passed to ssh as ConnectTimeout so an
	// unreachable host cannot stall preconnect indefinitely.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultVerbosity prints warnings and errors only.
	DefaultVerbosity = 1

	// EnvPrefix is prepended to every supported environment variable.
	EnvPrefix = "SSHMUX_"
)
