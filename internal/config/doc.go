// Package config loads lsphost configuration files.
//
// Configuration lives in a single TOML or YAML file; the format is picked by
// file extension. A missing file is not an error and yields the defaults, so
// hosts can run unconfigured.
//
// # Quick Start
//
//	file, err := config.Load("~/.config/lsphost/config.toml")
//	if err != nil {
//		// malformed file
//	}
//	manager := lsp.New(file.ManagerConfig())
package config
