/*
Package options contains a set of common CLI options and helper functions to use them.
*/
package options

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nspcc-dev/subgo/pkg/config"
	"github.com/nspcc-dev/subgo/pkg/rpcclient"
	"github.com/nspcc-dev/subgo/pkg/services/metrics"
	"github.com/nspcc-dev/subgo/pkg/typereg"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultTimeout is the default timeout used for the whole command.
const DefaultTimeout = 10 * time.Second

// RPCEndpointFlag is a long flag name for an RPC endpoint. It can be used to
// check for flag presence in the context.
const RPCEndpointFlag = "rpc-endpoint"

// RPC is a set of flags used for RPC connections (endpoint and timeout).
var RPC = []cli.Flag{
	cli.StringFlag{
		Name:  RPCEndpointFlag + ", r",
		Usage: "websocket RPC node address (overrides Endpoint from the configuration)",
	},
	cli.DurationFlag{
		Name:  "timeout, s",
		Value: DefaultTimeout,
		Usage: "Timeout for the operation",
	},
}

// ConfigFile is a flag for commands that use client configuration.
var ConfigFile = cli.StringFlag{
	Name:  "config-file",
	Usage: "path to the client configuration file (defaults are used if not set)",
}

// Types is a flag for commands that need a merged type schema.
var Types = cli.StringFlag{
	Name:  "types",
	Usage: "path to the merged type schema (overrides TypesPath from the configuration)",
}

// Debug is a flag for commands that allow debug logging.
var Debug = cli.BoolFlag{
	Name:  "debug, d",
	Usage: "enable debug logging (LOTS of output, overrides configuration)",
}

// Client is the set of flags for commands talking to a node.
var Client = append([]cli.Flag{ConfigFile, Types, Debug}, RPC...)

// GetTimeoutContext returns a context.Context with the default or a user-set timeout.
func GetTimeoutContext(ctx *cli.Context) (context.Context, func()) {
	dur := ctx.Duration("timeout")
	if dur == 0 {
		dur = DefaultTimeout
	}
	return context.WithTimeout(context.Background(), dur)
}

// GetConfigFromContext loads the configuration file given with --config-file
// (or the default configuration) and applies command line overrides to it.
func GetConfigFromContext(ctx *cli.Context) (config.Config, error) {
	var (
		cfg = config.Default()
		err error
	)
	if configFile := ctx.String("config-file"); configFile != "" {
		cfg, err = config.Load(configFile)
		if err != nil {
			return config.Config{}, err
		}
	}
	if endpoint := ctx.String(RPCEndpointFlag); endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if types := ctx.String("types"); types != "" {
		cfg.TypesPath = types
	}
	return cfg, nil
}

// HandleLoggingParams reads logging parameters.
// If a user selected debug level -- function enables it.
// If logPath is configured -- function creates a dir and a file for logging.
func HandleLoggingParams(debug bool, cfg config.Config) (*zap.Logger, *zap.AtomicLevel, error) {
	var (
		level = zapcore.InfoLevel
		err   error
	)
	if len(cfg.LogLevel) > 0 {
		level, err = zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Encoding = "console"
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil

	if logPath := cfg.LogPath; logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), os.ModePerm); err != nil {
			return nil, nil, fmt.Errorf("could not create dir for logger: %w", err)
		}
		cc.OutputPaths = []string{logPath}
	}

	log, err := cc.Build()
	return log, &cc.Level, err
}

// GetConfigAndLogger combines GetConfigFromContext with HandleLoggingParams.
func GetConfigAndLogger(ctx *cli.Context) (config.Config, *zap.Logger, cli.ExitCoder) {
	cfg, err := GetConfigFromContext(ctx)
	if err != nil {
		return config.Config{}, nil, cli.NewExitError(err, 1)
	}
	log, _, err := HandleLoggingParams(ctx.Bool("debug"), cfg)
	if err != nil {
		return config.Config{}, nil, cli.NewExitError(err, 1)
	}
	return cfg, log, nil
}

// GetTypes loads the merged type schema from cfg.TypesPath. A missing file
// at the default location is not an error, built-in types are used then.
func GetTypes(cfg config.Config, log *zap.Logger) (typereg.Schema, error) {
	schema, err := typereg.LoadFile(cfg.TypesPath)
	if err != nil {
		if cfg.TypesPath == config.DefaultTypesPath && errors.Is(err, os.ErrNotExist) {
			log.Debug("no type schema found, using built-in types", zap.String("path", cfg.TypesPath))
			return nil, nil
		}
		return nil, err
	}
	return schema, nil
}

// GetRPCClient returns an initialized RPC client for the given configuration
// with custom types, methods and storage items registered.
func GetRPCClient(gctx context.Context, cfg config.Config, log *zap.Logger) (*rpcclient.WSClient, cli.ExitCoder) {
	schema, err := GetTypes(cfg, log)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	c, err := rpcclient.New(gctx, cfg.Endpoint, rpcclient.Options{
		DialTimeout:    cfg.DialTimeout,
		RequestTimeout: cfg.RequestTimeout,
		Types:          schema,
		Methods:        cfg.Methods,
		Storage:        cfg.Storage,
		Logger:         log,
	})
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	err = c.Init()
	if err != nil {
		c.Close()
		return nil, cli.NewExitError(err, 1)
	}
	return c, nil
}

// StartServices starts configured metrics services, the returned function
// stops them.
func StartServices(cfg config.Config, log *zap.Logger) (func(), cli.ExitCoder) {
	services := []*metrics.Service{
		metrics.NewPrometheusService(cfg.Prometheus, log),
		metrics.NewPprofService(cfg.Pprof, log),
	}
	stop := func() {
		for _, s := range services {
			s.ShutDown()
		}
	}
	for _, s := range services {
		if err := s.Start(); err != nil {
			stop()
			return nil, cli.NewExitError(err, 1)
		}
	}
	return stop, nil
}
