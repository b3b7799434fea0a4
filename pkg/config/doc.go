// Package config loads the outreach configuration from the process environment
// (optionally seeded from a .env file and the OS keyring) and an optional YAML
// campaign file. Loading is all-or-nothing: any missing credential aborts.
package config
