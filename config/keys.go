package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"
)

// ErrNoAgent is returned by AgentHolds when SSH_AUTH_SOCK is unset.
var ErrNoAgent = errors.New("SSH_AUTH_SOCK is not set")

// CheckIdentity verifies that path holds a private key ssh can use.
// Passphrase-protected keys are accepted; ssh prompts for them itself.
func CheckIdentity(path string) error {
	_, _, err := inspectIdentity(path)
	return err
}

// inspectIdentity parses the key at path.  pub is nil when the key is
// encrypted in a format that does not expose its public half.
func inspectIdentity(path string) (pub ssh.PublicKey, encrypted bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("reading key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return missing.PublicKey, true, nil
		}
		return nil, false, fmt.Errorf("parsing key: %w", err)
	}
	return signer.PublicKey(), false, nil
}

// AgentHolds reports whether the agent at SSH_AUTH_SOCK has pub loaded.
func AgentHolds(pub ssh.PublicKey) (bool, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return false, ErrNoAgent
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return false, fmt.Errorf("ssh-agent: %w", err)
	}
	defer conn.Close()

	keys, err := agent.NewClient(conn).List()
	if err != nil {
		return false, fmt.Errorf("ssh-agent: listing keys: %w", err)
	}
	want := pub.Marshal()
	for _, k := range keys {
		if bytes.Equal(k.Marshal(), want) {
			return true, nil
		}
	}
	return false, nil
}

// CheckKnownHosts verifies that path is a readable known_hosts file.
func CheckKnownHosts(path string) error {
	if _, err := knownhosts.New(path); err != nil {
		return fmt.Errorf("loading known_hosts: %w", err)
	}
	return nil
}

// Interactive reports whether stdin is a terminal.  When it is not, ssh
// cannot prompt and should run with BatchMode=yes.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Warnings returns problems that do not stop a run but will probably
// make it fail, such as a passphrase-protected identity in batch mode
// that no agent can unlock.
func (c *Config) Warnings() []string {
	if !c.BatchMode || c.IdentityFile == "" {
		return nil
	}
	pub, encrypted, err := inspectIdentity(c.IdentityFile)
	if err != nil || !encrypted {
		return nil
	}
	if pub != nil {
		if held, err := AgentHolds(pub); err == nil && held {
			return nil
		}
	}
	return []string{fmt.Sprintf(
		"identity %s is passphrase protected and not loaded in ssh-agent; batch mode cannot prompt for it",
		c.IdentityFile)}
}
