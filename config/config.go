package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"remotefile/protocols"
)

type Config struct {
	Log         Log                   `toml:"log" yaml:"log"`
	Connections map[string]Connection `toml:"connections" yaml:"connections"`
	Jobs        []Job                 `toml:"jobs" yaml:"jobs"`
}

type Log struct {
	Level  string `toml:"level" yaml:"level"`   // debug, info, warn, error
	Format string `toml:"format" yaml:"format"` // text, json
}

type Connection struct {
	Type           string   `toml:"type" yaml:"type"` // local, ftp, sftp, minio
	Host           string   `toml:"host" yaml:"host"`
	Port           int      `toml:"port" yaml:"port"`
	User           string   `toml:"user" yaml:"user"`
	Password       string   `toml:"password" yaml:"password"`
	KeyPath        string   `toml:"key_path" yaml:"key_path"`
	SSHAlias       string   `toml:"ssh_alias" yaml:"ssh_alias"`
	KnownHosts     string   `toml:"known_hosts" yaml:"known_hosts"`
	ExplicitTLS    bool     `toml:"explicit_tls" yaml:"explicit_tls"`
	Timeout        string   `toml:"timeout" yaml:"timeout"`
	Root           string   `toml:"root" yaml:"root"`
	URL            string   `toml:"url" yaml:"url"`
	TextExtensions []string `toml:"text_extensions,omitempty" yaml:"text_extensions,omitempty"`
}

type Job struct {
	Name        string `toml:"name" yaml:"name"`
	Cron        string `toml:"cron" yaml:"cron"`
	Connection  string `toml:"connection" yaml:"connection"`
	Direction   string `toml:"direction" yaml:"direction"` // get, put
	Remote      string `toml:"remote" yaml:"remote"`
	Local       string `toml:"local" yaml:"local"`
	Mode        string `toml:"mode" yaml:"mode"` // "", binary, text
	Resume      bool   `toml:"resume" yaml:"resume"`
	Mkdir       bool   `toml:"mkdir" yaml:"mkdir"`
	Chmod       string `toml:"chmod" yaml:"chmod"`
	DeleteAfter bool   `toml:"delete_after" yaml:"delete_after"`
	RunOnStart  bool   `toml:"run_on_start" yaml:"run_on_start"`
}

// LoadConfig reads TOML, or YAML when the file ends in .yaml or .yml.
// ${VAR} references in credentials are expanded from the environment.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = toml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for name, c := range cfg.Connections {
		c.Host = os.ExpandEnv(c.Host)
		c.User = os.ExpandEnv(c.User)
		c.Password = os.ExpandEnv(c.Password)
		c.URL = os.ExpandEnv(c.URL)
		cfg.Connections[name] = c
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnv loads .env style files into the process environment. Missing
// files are skipped; existing variables are not overridden.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load env %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	for name, conn := range c.Connections {
		switch conn.Type {
		case "local", "ftp", "sftp", "minio", "s3":
		default:
			return fmt.Errorf("connection %s: %w: %q", name, protocols.ErrUnknownType, conn.Type)
		}
		if _, err := conn.TimeoutDuration(); err != nil {
			return fmt.Errorf("connection %s: invalid timeout: %w", name, err)
		}
	}

	seen := make(map[string]bool, len(c.Jobs))
	for i, job := range c.Jobs {
		if job.Name == "" {
			return fmt.Errorf("job #%d: name is required", i+1)
		}
		if seen[job.Name] {
			return fmt.Errorf("job %s: duplicate name", job.Name)
		}
		seen[job.Name] = true

		if _, ok := c.Connections[job.Connection]; !ok {
			return fmt.Errorf("job %s: unknown connection %q", job.Name, job.Connection)
		}
		if job.Direction != "get" && job.Direction != "put" {
			return fmt.Errorf("job %s: direction must be get or put, got %q", job.Name, job.Direction)
		}
		if job.Remote == "" || job.Local == "" {
			return fmt.Errorf("job %s: remote and local paths are required", job.Name)
		}
		if _, err := job.TransferMode(); err != nil {
			return fmt.Errorf("job %s: %w", job.Name, err)
		}
		if _, err := job.Perm(); err != nil {
			return fmt.Errorf("job %s: %w", job.Name, err)
		}
	}
	return nil
}

// Endpoint converts the connection settings for protocols.Dial.
func (c Connection) Endpoint() (protocols.Endpoint, error) {
	timeout, err := c.TimeoutDuration()
	if err != nil {
		return protocols.Endpoint{}, err
	}
	return protocols.Endpoint{
		Type:        c.Type,
		Host:        c.Host,
		Port:        c.Port,
		User:        c.User,
		Password:    c.Password,
		KeyPath:     c.KeyPath,
		SSHAlias:    c.SSHAlias,
		KnownHosts:  c.KnownHosts,
		ExplicitTLS: c.ExplicitTLS,
		Timeout:     timeout,
		Root:        c.Root,
		URL:         c.URL,
	}, nil
}

func (c Connection) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Timeout)
}

// Resolver returns the text/binary classifier configured for this connection.
func (c Connection) Resolver() *protocols.Resolver {
	if len(c.TextExtensions) == 0 {
		return protocols.DefaultResolver()
	}
	return protocols.NewResolver(c.TextExtensions...)
}

// TransferMode returns 0 when the job leaves the choice to the resolver.
func (j Job) TransferMode() (protocols.TransferMode, error) {
	if j.Mode == "" || j.Mode == "auto" {
		return 0, nil
	}
	return protocols.ParseTransferMode(j.Mode)
}

// Perm parses the octal chmod setting; 0 means unset.
func (j Job) Perm() (os.FileMode, error) {
	if j.Chmod == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(j.Chmod, 8, 32)
	if err != nil || v > 0o777 {
		return 0, fmt.Errorf("invalid chmod %q", j.Chmod)
	}
	return os.FileMode(v), nil
}
