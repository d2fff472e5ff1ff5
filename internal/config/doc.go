// Package config loads, normalizes, and validates ferry configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FERRY_AGENT_<NAME>_PASSWORD. The Config type centralizes every knob the
// daemon and CLI need: fetch agents, media roots, naming templates, transfer
// mode, and permission policy.
//
// The daemon holds its configuration in a Holder so a reload is an explicit
// operation; import runs snapshot the current value when they start.
package config
