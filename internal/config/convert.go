package config

import (
	"strings"

	"github.com/danmuck/wrapctl/internal/envexec"
)

// Launcher converts the remote section into the launcher and target platform
// tools should be built for.
func (c Config) Launcher() (envexec.Launcher, envexec.Platform, error) {
	if !c.Remote.Enabled {
		return envexec.LocalLauncher{}, envexec.CurrentPlatform(), nil
	}
	timeout, err := c.Remote.TimeoutDuration()
	if err != nil {
		return nil, envexec.Platform{}, err
	}
	return envexec.SSHLauncher{
		Host:                        strings.TrimSpace(c.Remote.Host),
		Port:                        strings.TrimSpace(c.Remote.Port),
		User:                        strings.TrimSpace(c.Remote.User),
		KeyPath:                     strings.TrimSpace(c.Remote.KeyPath),
		KnownHostsPath:              strings.TrimSpace(c.Remote.KnownHostsPath),
		InsecureSkipHostKeyChecking: c.Remote.InsecureSkipHostKeyChecking,
		Timeout:                     timeout,
	}, envexec.PosixPlatform, nil
}
