// Package config loads Canopy's TOML configuration.
//
// Resolution order: an explicit path if given, otherwise
// ~/.config/canopy/config.toml, otherwise hardcoded defaults. A missing
// file is not an error — Canopy works out of the box against a local Arbor
// instance.
//
// Example config.toml:
//
//	api_base = "https://arbor.internal"
//	token = "arb_pat_..."
//	redis_url = "redis://127.0.0.1:6379/2"
//	poll_seconds = 30
//	log_dir = "~/.local/share/canopy/logs"
//
// All fields are optional. api_base without a scheme gets http://. An empty
// redis_url keeps cached reads in process memory. Tilde paths expand to the
// home directory.
//
// The package is read-only and stateless: Load runs once at startup and
// returns an immutable Config.
package config
