package config

import (
	"fmt"
	"os"
	"path/filepath"
)

func Template() string {
	return configTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(configTemplate), 0o600)
}

const configTemplate = `[server]
id = "wrapctl"
addr = ":9300"
cors_origins = ["http://localhost:3000"]
auth_token = ""

[prefs]
path = "local/prefs.toml"

[run]
drain_timeout = "5s"

[remote]
enabled = false
host = "gpu-node"
port = "22"
user = "analyst"
key_path = "/home/analyst/.ssh/id_ed25519"
known_hosts_path = ""
insecure_skip_host_key_checking = false
timeout = "10s"
`
