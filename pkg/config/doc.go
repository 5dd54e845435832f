// Package config defines the ACS configuration model and its loading
// pipeline.
//
// Configuration is loaded from a YAML file, defaults are applied for any
// unset field, RODISTAA_* environment variables override file values, and
// the result is validated before anything starts. A config that fails
// validation never reaches the engine.
package config
