// Package homedir initialises a freshly registered member's home directory
// by opening one SSH session as the new account. The shell host creates the
// home tree on first login, so the member never has to SSH in themselves
// before the portal's file tools work.
package homedir

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/ssh"
)

// Initializer triggers first-login setup for a new account.
type Initializer interface {
	Initialize(ctx context.Context, username, password string) error
}

// SSHInitializer dials the shell host with the member's own credentials.
// An empty host disables the step; Initialize then succeeds as a no-op.
type SSHInitializer struct {
	host    string
	timeout time.Duration
}

func NewSSHInitializer(host string) *SSHInitializer {
	return &SSHInitializer{host: host, timeout: 10 * time.Second}
}

func (s *SSHInitializer) Initialize(ctx context.Context, username, password string) error {
	if s.host == "" {
		return nil
	}

	cfg := &ssh.ClientConfig{
		User:            username,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         s.timeout,
	}

	client, err := ssh.Dial("tcp", s.host, cfg)
	if err != nil {
		return fmt.Errorf("dialing shell host as %s: %w", username, err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("opening session as %s: %w", username, err)
	}
	defer session.Close()

	// One successful login is all the host needs to build the home tree.
	return session.Run("true")
}
