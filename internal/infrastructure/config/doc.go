// Package config handles loading and validating bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with HCBRIDGE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Hub and MQTT credentials and the InfluxDB token should be supplied through
// the environment rather than the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/hcbridge.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Hub.URL)
package config
