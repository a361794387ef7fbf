// Package config loads and validates service configuration from
// FLOWDECK_* environment variables.
package config
