package config

import (
	"fmt"
	"time"

	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/go-pluto/orset/tag"
)

// Default interval between two anti-entropy rounds.
const DefaultSyncInterval = 2 * time.Second

// Structs

// Config holds all information parsed from
// supplied config file. ReplicaID goes into every
// tag the replica mints. Operators must give every
// replica of one set its own ID and keep it across
// restarts, equal IDs make replicas mint equal tags.
type Config struct {
	Name           string
	ReplicaID      int
	ListenAddr     string
	HTTPAddr       string
	PrometheusAddr string
	StatePath      string
	SyncInterval   Duration
	TLS            TLS
	Peers          map[string]string
}

// TLS locates the certificate material for
// mutually authenticated replica connections.
// Leave all fields empty to run without TLS.
type TLS struct {
	CertLoc     string
	KeyLoc      string
	RootCertLoc string
}

// Duration wraps time.Duration so that it can be
// written as "2s" or "500ms" in the TOML file.
type Duration struct {
	time.Duration
}

// Functions

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {

	var err error
	d.Duration, err = time.ParseDuration(string(text))

	return err
}

// Enabled reports whether any TLS material is configured.
func (t TLS) Enabled() bool {
	return t.CertLoc != "" || t.KeyLoc != "" || t.RootCertLoc != ""
}

// LoadConfig takes in the path to the main config
// file in TOML syntax and places the values from the
// file in the corresponding struct.
func LoadConfig(configFile string) (*Config, error) {

	conf := new(Config)

	// Parse values from TOML file into struct.
	_, err := toml.DecodeFile(configFile, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read in TOML config file at '%s' with: %v", configFile, err)
	}

	// Retrieve absolute path of the directory
	// the config file lives in.
	absConfigDir, err := filepath.Abs(filepath.Dir(configFile))
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path of config directory: %v", err)
	}

	// Prefix each relative path in config with
	// just obtained absolute path.
	conf.StatePath = absolute(absConfigDir, conf.StatePath)
	conf.TLS.CertLoc = absolute(absConfigDir, conf.TLS.CertLoc)
	conf.TLS.KeyLoc = absolute(absConfigDir, conf.TLS.KeyLoc)
	conf.TLS.RootCertLoc = absolute(absConfigDir, conf.TLS.RootCertLoc)

	if conf.SyncInterval.Duration == 0 {
		conf.SyncInterval.Duration = DefaultSyncInterval
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return conf, nil
}

// absolute joins relative paths onto dir and
// leaves empty and absolute paths untouched.
func absolute(dir string, path string) string {

	if path == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(dir, path)
}

// Validate checks conf for values a replica cannot run with.
func (conf *Config) Validate() error {

	if conf.Name == "" {
		return fmt.Errorf("replica name must not be empty")
	}

	if conf.ListenAddr == "" {
		return fmt.Errorf("listen address of replica %s must not be empty", conf.Name)
	}

	if conf.ReplicaID == 0 {
		return fmt.Errorf("replica %s needs a ReplicaID unique among all replicas, e.g. %d", conf.Name, tag.RandomReplicaID()|1)
	}

	if conf.ReplicaID < 1 || conf.ReplicaID > tag.MaxReplicaID {
		return fmt.Errorf("replica ID %d out of range [1, %d]", conf.ReplicaID, tag.MaxReplicaID)
	}

	if conf.SyncInterval.Duration <= 0 {
		return fmt.Errorf("sync interval must be positive, got %s", conf.SyncInterval.Duration)
	}

	if conf.TLS.Enabled() && (conf.TLS.CertLoc == "" || conf.TLS.KeyLoc == "" || conf.TLS.RootCertLoc == "") {
		return fmt.Errorf("TLS needs CertLoc, KeyLoc and RootCertLoc or none of them")
	}

	if _, self := conf.Peers[conf.Name]; self {
		return fmt.Errorf("replica %s must not list itself as peer", conf.Name)
	}

	return nil
}
