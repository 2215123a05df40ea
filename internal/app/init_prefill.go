package app

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// initPrefill pre-populates the setup form from an already-configured
// DSN, so rerunning the wizard starts from the current values. The
// password itself is never echoed back, only whether one is set.
type initPrefill struct {
	DatabaseType        string `json:"database_type"`
	DatabaseHost        string `json:"database_host"`
	DatabasePort        int    `json:"database_port"`
	DatabaseUser        string `json:"database_user"`
	DatabaseName        string `json:"database_name"`
	DatabaseSSLMode     string `json:"database_ssl_mode"`
	DatabasePath        string `json:"database_path"`
	DatabasePasswordSet bool   `json:"database_password_set"`
}

func initPrefillFromDSN(dsn string) (initPrefill, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return initPrefill{}, fmt.Errorf("empty dsn")
	}

	if strings.HasPrefix(strings.ToLower(dsn), "file:") {
		path, _, _ := strings.Cut(dsn[len("file:"):], "?")
		return initPrefill{
			DatabaseType: "sqlite",
			DatabasePath: strings.TrimSpace(path),
		}, nil
	}

	parsed, errParse := url.Parse(dsn)
	if errParse != nil {
		return initPrefill{}, fmt.Errorf("parse dsn: %w", errParse)
	}
	scheme := strings.ToLower(strings.TrimSpace(parsed.Scheme))
	if scheme != "postgres" && scheme != "postgresql" {
		return initPrefill{}, fmt.Errorf("unsupported dsn scheme")
	}

	port := 5432
	if raw := strings.TrimSpace(parsed.Port()); raw != "" {
		value, errPort := strconv.Atoi(raw)
		if errPort != nil {
			return initPrefill{}, fmt.Errorf("parse port: %w", errPort)
		}
		port = value
	}

	username := ""
	passwordSet := false
	if parsed.User != nil {
		username = strings.TrimSpace(parsed.User.Username())
		_, passwordSet = parsed.User.Password()
	}

	sslMode := strings.TrimSpace(parsed.Query().Get("sslmode"))
	if sslMode == "" {
		sslMode = "disable"
	}

	return initPrefill{
		DatabaseType:        "postgres",
		DatabaseHost:        strings.TrimSpace(parsed.Hostname()),
		DatabasePort:        port,
		DatabaseUser:        username,
		DatabaseName:        strings.TrimSpace(strings.TrimPrefix(parsed.Path, "/")),
		DatabaseSSLMode:     sslMode,
		DatabasePasswordSet: passwordSet,
	}, nil
}
