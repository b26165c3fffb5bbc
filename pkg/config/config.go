package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nspcc-dev/subgo/pkg/extrinsic"
	"github.com/nspcc-dev/subgo/pkg/rpcclient"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultEndpoint is the websocket endpoint of a local node.
	DefaultEndpoint = "ws://localhost:9944"
	// DefaultTypesPath is the default merged type schema location.
	DefaultTypesPath = "types.json"
	// DefaultTimeout is the default dial and request timeout.
	DefaultTimeout = 4 * time.Second
	// DefaultSubmitDelay is the default pause between batch transactions.
	DefaultSubmitDelay = time.Second
)

// Version is the version of the client, set at build time.
var Version string

// Config is the top-level client configuration.
type Config struct {
	Endpoint       string                        `yaml:"Endpoint"`
	TypesPath      string                        `yaml:"TypesPath"`
	DialTimeout    time.Duration                 `yaml:"DialTimeout"`
	RequestTimeout time.Duration                 `yaml:"RequestTimeout"`
	LogLevel       string                        `yaml:"LogLevel"`
	LogPath        string                        `yaml:"LogPath"`
	Submitter      Submitter                     `yaml:"Submitter"`
	Prometheus     BasicService                  `yaml:"Prometheus"`
	Pprof          BasicService                  `yaml:"Pprof"`
	Methods        []rpcclient.MethodDescriptor  `yaml:"Methods"`
	Storage        []rpcclient.StorageDescriptor `yaml:"Storage"`
	Calls          []extrinsic.CallDescriptor    `yaml:"Calls"`
}

// Submitter is the batch submitter configuration.
type Submitter struct {
	Delay time.Duration `yaml:"Delay"`
	// Tip is added to every transaction.
	Tip uint64 `yaml:"Tip"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Endpoint:       DefaultEndpoint,
		TypesPath:      DefaultTypesPath,
		DialTimeout:    DefaultTimeout,
		RequestTimeout: DefaultTimeout,
		LogLevel:       "info",
		Submitter: Submitter{
			Delay: DefaultSubmitDelay,
		},
	}
}

// Load attempts to load the config from the given path, unset values get
// defaults. Unknown fields are an error.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("unable to load config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads the config from r, see Load.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("empty Endpoint")
	}
	if c.DialTimeout < 0 || c.RequestTimeout < 0 {
		return errors.New("negative timeout")
	}
	for name, s := range map[string]BasicService{"Prometheus": c.Prometheus, "Pprof": c.Pprof} {
		if s.Enabled && len(s.Addresses) == 0 {
			return fmt.Errorf("%s is enabled, but no Addresses are set", name)
		}
	}
	return nil
}
