// Package config provides the configuration model and loading for the
// image gateway.
//
// Configuration is a single YAML file. Values may reference environment
// variables with ${VAR} or ${VAR:-default}; a literal dollar sign is
// written as $$. Defaults are applied after parsing and the result is
// checked by a Validator that reports every problem at once.
//
// # Loading
//
//	cfg, err := config.LoadConfig("configs/imagegw.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := config.ValidateConfig(cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// # Hot Reload
//
// A Watcher observes the file with fsnotify, debounces bursts of writes
// and hands each valid configuration to a callback. Saves that leave the
// bytes unchanged are skipped. Invalid files are reported and the
// previous configuration stays in effect.
package config
