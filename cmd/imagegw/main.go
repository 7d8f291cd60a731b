// Package main is the entry point for the image gateway.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avaimg/internal/config"
	"github.com/vyrodovalexey/avaimg/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// defaultConfigFile is looked up in the working directory, configs/ and
// /etc/imagegw.
const defaultConfigFile = "imagegw.yaml"

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags(flag.CommandLine, os.Args[1:])

	if flags.showVersion {
		printVersion()
		return
	}

	gin.SetMode(gin.ReleaseMode)
	logger := initLogger(flags)

	configPath, err := config.ResolveConfigPath(flags.configPath)
	if err != nil {
		fatalWithSync(logger, "failed to locate configuration", observability.Error(err))
	}

	cfg, err := loadAndValidateConfig(configPath, logger)
	if err != nil {
		fatalWithSync(logger, "failed to load configuration", observability.Error(err))
	}

	configured, err := configureLogger(flags, cfg.Logging)
	if err != nil {
		fatalWithSync(logger, "failed to configure logging", observability.Error(err))
	}
	_ = logger.Sync()
	logger = configured
	restoreGlobals := observability.InstallGlobals(logger)
	defer func() {
		restoreGlobals()
		_ = logger.Sync()
	}()

	app, err := initApplication(cfg, logger)
	if err != nil {
		fatalWithSync(logger, "failed to initialize application", observability.Error(err))
	}

	runGateway(app, configPath, logger)
}

// parseFlags parses command line flags. Environment variables provide the
// defaults so flags always win.
func parseFlags(fs *flag.FlagSet, args []string) cliFlags {
	configPath := fs.String("config", getEnvOrDefault(envConfigPath, defaultConfigFile),
		"Path to configuration file")
	logLevel := fs.String("log-level", getEnvOrDefault(envLogLevel, ""),
		"Log level (debug, info, warn, error); overrides the config file")
	logFormat := fs.String("log-format", getEnvOrDefault(envLogFormat, ""),
		"Log format (json, console); overrides the config file")
	showVersion := fs.Bool("version", getEnvBool(envShowVersion, false), "Show version information")
	_ = fs.Parse(args)

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("imagegw version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger builds the bootstrap logger used until the config file is
// read. Only flags and environment apply at this point.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(mergeLogConfig(flags, config.LoggingConfig{}))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// configureLogger builds the process logger from the config file's
// logging section with flag overrides applied.
func configureLogger(flags cliFlags, logging config.LoggingConfig) (observability.Logger, error) {
	return observability.NewLogger(mergeLogConfig(flags, logging))
}

// mergeLogConfig layers defaults, then the config file, then flags.
func mergeLogConfig(flags cliFlags, logging config.LoggingConfig) observability.LogConfig {
	logCfg := observability.DefaultLogConfig()
	overlay(&logCfg.Level, logging.Level, flags.logLevel)
	overlay(&logCfg.Format, logging.Format, flags.logFormat)
	overlay(&logCfg.Output, logging.Output)
	return logCfg
}

func overlay(dst *string, vals ...string) {
	for _, v := range vals {
		if v != "" {
			*dst = v
		}
	}
}

// loadAndValidateConfig loads and validates the configuration.
func loadAndValidateConfig(configPath string, logger observability.Logger) (*config.Config, error) {
	logger.Info("starting imagegw",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	logger.Info("configuration loaded",
		observability.String("address", cfg.Server.Address),
		observability.Int("routes", len(cfg.Routes)),
		observability.Int("fetch_workers", cfg.Fetch.Workers),
		observability.Bool("rate_limit", cfg.RateLimit != nil && cfg.RateLimit.Enabled),
	)
	return cfg, nil
}

// fatalWithSync flushes the logger before exiting.
func fatalWithSync(logger observability.Logger, msg string, fields ...observability.Field) {
	logger.Error(msg, fields...)
	_ = logger.Sync()
	os.Exit(1)
}
