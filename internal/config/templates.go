package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "daemon":
		return daemonTemplate, nil
	case "client":
		return clientTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const daemonTemplate = `name = "pktwired"

[records]
host = "127.0.0.1"
service = "53467"
unix_socket = ""
store_dir = "local/records"
concurrent_sessions = true
max_sessions = 16

[echo]
enabled = true
host = "127.0.0.1"
service = "53468"

[limits]
max_data_bytes = 8388608

[ops]
addr = "127.0.0.1:9100"
cors_origins = ["http://localhost:3000"]
`

const clientTemplate = `host = "127.0.0.1"
service = "53467"
unix_socket = ""
timeout = "5s"
`
