// Package config provides configuration loading and type-safe value access
// for AXIOM components.
//
// Config wraps a map[string]any (typically loaded from a YAML or JSON file)
// and exposes accessors that return a default when a key is missing or has
// the wrong type. Nested sections are reached with Sub:
//
//	cfg, _ := config.FromFile("axiom.yaml")
//	busCfg := event.BusConfigFrom(cfg.Sub("event_bus"))
package config
