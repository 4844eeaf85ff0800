// Package config handles loading and validating stomata configuration.
//
// Values come from built-in defaults, then the YAML file, then STOMATA_*
// environment variables. Validate reports every problem at once.
//
// Secrets (MQTT password, InfluxDB token) should be supplied through the
// environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.NotifierAddr())
package config
