// Package config provides configuration parsing for the VOS engine and its tools.
//
// # Overview
//
// Configuration is read from a YAML file. Values may reference environment
// variables as ${VAR} or ${VAR:-default}; substitution happens before
// parsing. Anything the file leaves out keeps the value from DefaultConfig.
//
// Sizes are strings understood by go-humanize, such as "64MiB" or "1 GB".
//
// # Example Configuration
//
//	pool:
//	  path: "${VOS_POOL:-/var/lib/vos/pool.vos}"
//	  size: "256MiB"
//	  undoLogSize: "4MiB"
//	  syncOnCommit: true
//
//	tree:
//	  ilogOrder: 11
//	  dtxOrder: 16
//	  objectOrder: 16
//	  containerOrder: 16
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  output: "stderr"
//
// # Validation
//
// ValidateConfig returns every problem found rather than stopping at the
// first one:
//
//	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
//	    for _, err := range errs {
//	        fmt.Fprintln(os.Stderr, err)
//	    }
//	}
package config
