package app

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// ClientConfig defines the parameters the TUI client needs.
type ClientConfig struct {
	APIBaseURL string
	SocketURL  string
	Username   string
	CachePath  string
	LogPath    string
}

const (
	apiBaseURLKey = "api_base_url"
	socketURLKey  = "socket_url"
	usernameKey   = "username"
	cachePathKey  = "cache_path"
	logPathKey    = "log_path"
)

// LoadConfig resolves the client configuration from defaults, the
// optional config file and WATCHROOM_* environment variables, in that
// order of precedence (later wins).
func LoadConfig(cfgFile string) (ClientConfig, error) {
	v := viper.New()
	v.SetDefault(apiBaseURLKey, "http://localhost:8080")
	v.SetDefault(socketURLKey, "ws://localhost:8080/ws")
	v.SetDefault(cachePathKey, DefaultCachePath())
	v.SetDefault(logPathKey, DefaultLogPath())

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return ClientConfig{}, err
		}
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".watchroom")
	}

	v.SetEnvPrefix("WATCHROOM")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return ClientConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	return ClientConfig{
		APIBaseURL: v.GetString(apiBaseURLKey),
		SocketURL:  v.GetString(socketURLKey),
		Username:   v.GetString(usernameKey),
		CachePath:  v.GetString(cachePathKey),
		LogPath:    v.GetString(logPathKey),
	}, nil
}

// DefaultCachePath returns a per-user data path for the bundled SQLite file.
func DefaultCachePath() string {
	if env := os.Getenv("WATCHROOM_CACHE_PATH"); env != "" {
		return env
	}
	if env := os.Getenv("WATCHROOM_DATA_DIR"); env != "" {
		return filepath.Join(env, "watchroom.db")
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "watchroom", "watchroom.db")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Watchroom", "watchroom.db")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "Watchroom", "watchroom.db")
		}
		return filepath.Join(home, ".local", "share", "watchroom", "watchroom.db")
	}
	return filepath.Join(".", ".watchroom", "watchroom.db")
}

// DefaultLogPath returns the log file path next to the cache file. The
// TUI owns the terminal, so logs never go to stderr while it runs.
func DefaultLogPath() string {
	return filepath.Join(filepath.Dir(DefaultCachePath()), "watchroom.log")
}
