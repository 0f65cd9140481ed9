// Package config loads settings from defaults, a TOML file, the environment
// and command line flags, in increasing priority.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultPath is where Load looks for the TOML file unless -config says otherwise.
const DefaultPath = "config/config.toml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PAGELAYER_"

// Config holds every setting of the editor server and tools.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Editor  EditorConfig  `toml:"editor"`
	Lua     LuaConfig     `toml:"lua"`
	Session SessionConfig `toml:"session"`
	Logging LoggingConfig `toml:"logging"`
	MCP     MCPConfig     `toml:"mcp"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	Dir  string `toml:"dir"` // static front end, optional
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StorageConfig struct {
	Type string `toml:"type"` // memory, sqlite, postgresql
	Path string `toml:"path"`
	URL  string `toml:"url"`
}

// EditorConfig tunes the editing core.
type EditorConfig struct {
	HistoryLimit     int     `toml:"history_limit"`
	MinSize          float64 `toml:"min_size"`
	MinTableSize     float64 `toml:"min_table_size"`
	RotationAware    bool    `toml:"rotation_aware"`
	CoalesceGestures bool    `toml:"coalesce_gestures"`
}

type LuaConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type SessionConfig struct {
	Timeout Duration `toml:"timeout"` // 0 keeps sessions forever
}

type LoggingConfig struct {
	Level     string `toml:"level"`
	Verbosity int    `toml:"verbosity"` // 0 lifecycle, 1 connections, 2 messages, 3 mutations, 4 values
	File      string `toml:"file"`
}

type MCPConfig struct {
	Enabled bool `toml:"enabled"`
}

// Duration is a time.Duration written as a string ("30m") in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Host: "127.0.0.1", Port: 8080},
		Storage: StorageConfig{Type: "memory", Path: "pagelayer.db"},
		Editor: EditorConfig{
			HistoryLimit:     50,
			MinSize:          20,
			MinTableSize:     50,
			RotationAware:    true,
			CoalesceGestures: true,
		},
		Lua:     LuaConfig{Enabled: true, Path: "lua/"},
		Session: SessionConfig{Timeout: Duration(24 * time.Hour)},
		Logging: LoggingConfig{Level: "info"},
		MCP:     MCPConfig{Enabled: true},
	}
}

// verbosity counts repeated -v flags.
type verbosity int

func (v *verbosity) String() string   { return strconv.Itoa(int(*v)) }
func (v *verbosity) Set(string) error { *v++; return nil }
func (v *verbosity) IsBoolFlag() bool { return true }

// expandVerbosity rewrites -vvv as -v -v -v.
func expandVerbosity(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if len(arg) > 2 && strings.Trim(arg[1:], "v") == "" && arg[0] == '-' {
			for range arg[1:] {
				out = append(out, "-v")
			}
			continue
		}
		out = append(out, arg)
	}
	return out
}

// Load builds the configuration for a command. Flags are parsed from args;
// the remaining positional arguments are returned.
func Load(name string, args []string) (*Config, []string, error) {
	cfg := Default()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	path := fs.String("config", DefaultPath, "TOML configuration file")
	host := fs.String("host", "", "listen address")
	port := fs.Int("port", 0, "listen port")
	dir := fs.String("dir", "", "serve the editor front end from this directory")
	storage := fs.String("storage", "", "storage type: memory, sqlite, postgresql")
	storagePath := fs.String("storage-path", "", "SQLite database path")
	storageURL := fs.String("storage-url", "", "PostgreSQL connection URL")
	historyLimit := fs.Int("history-limit", 0, "undo steps kept per page")
	legacyDrag := fs.Bool("legacy-drag", false, "ignore page rotation when dragging")
	luaPath := fs.String("lua-path", "", "Lua scripts directory")
	noLua := fs.Bool("no-lua", false, "disable Lua scripting")
	timeout := fs.Duration("session-timeout", 0, "session expiration (0 = config value)")
	level := fs.String("log-level", "", "log level: debug, info, warn, error")
	logFile := fs.String("log-file", "", "write logs to this file")
	var v verbosity
	fs.Var(&v, "v", "verbosity (-v, -vv, -vvv, -vvvv)")

	if err := fs.Parse(expandVerbosity(args)); err != nil {
		return nil, nil, err
	}

	if _, err := toml.DecodeFile(*path, cfg); err != nil && !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("config %s: %w", *path, err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, nil, err
	}

	setString(&cfg.Server.Host, *host)
	setString(&cfg.Server.Dir, *dir)
	setString(&cfg.Storage.Type, *storage)
	setString(&cfg.Storage.Path, *storagePath)
	setString(&cfg.Storage.URL, *storageURL)
	setString(&cfg.Lua.Path, *luaPath)
	setString(&cfg.Logging.Level, *level)
	setString(&cfg.Logging.File, *logFile)
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *historyLimit > 0 {
		cfg.Editor.HistoryLimit = *historyLimit
	}
	if *legacyDrag {
		cfg.Editor.RotationAware = false
	}
	if *noLua {
		cfg.Lua.Enabled = false
	}
	if *timeout != 0 {
		cfg.Session.Timeout = Duration(*timeout)
	}
	if v > 0 {
		cfg.Logging.Verbosity = int(v)
	}
	return cfg, fs.Args(), nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// applyEnv reads PAGELAYER_* overrides through lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"HOST":         &c.Server.Host,
		"DIR":          &c.Server.Dir,
		"STORAGE":      &c.Storage.Type,
		"STORAGE_PATH": &c.Storage.Path,
		"STORAGE_URL":  &c.Storage.URL,
		"LUA_PATH":     &c.Lua.Path,
		"LOG_LEVEL":    &c.Logging.Level,
		"LOG_FILE":     &c.Logging.File,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	ints := map[string]*int{
		"PORT":          &c.Server.Port,
		"HISTORY_LIMIT": &c.Editor.HistoryLimit,
		"VERBOSITY":     &c.Logging.Verbosity,
	}
	for key, dst := range ints {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}
	bools := map[string]*bool{
		"LUA":            &c.Lua.Enabled,
		"MCP":            &c.MCP.Enabled,
		"ROTATION_AWARE": &c.Editor.RotationAware,
	}
	for key, dst := range bools {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}
	if v, ok := lookup(EnvPrefix + "SESSION_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSESSION_TIMEOUT: %w", EnvPrefix, err)
		}
		c.Session.Timeout = Duration(d)
	}
	return nil
}
