// Package config provides configuration for the databox tools.
//
// # Usage
//
//	cfg, err := config.LoadFile("databox.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	box := databox.New(databox.WithConfig(cfg))
//
// # Environment Variable Substitution
//
//	# databox.yaml
//	save:
//	  binary: ${DATABOX_BINARY}
//	legacy:
//	  column_renames:
//	    Vx: voltage_x
//
// # Sections
//
//   - Parse: forced delimiter, resolver sample size
//   - Save: delimiter fallback, binary dtype, pad token, overwrite policy
//   - Script: recursion cap, extra numeric globals
//   - Legacy: column rename table applied after every load
//   - Logging: level, encoding, output paths
//   - Observability: metrics and tracing switches
package config
