// Package config loads and validates medchat configuration.
//
// Configuration lives in ~/.config/medchat/config.yaml and is layered:
// built-in defaults, then the config file, then environment variables
// (MEDCHAT_API_BASE, MEDCHAT_API_KEY). A missing file means defaults; a
// malformed file is an error.
//
// The package also owns derived configuration: the ordered refresh
// candidate list (primary origin first, loopback variants only when
// allowLoopback is set) and duration forms of the session tunables.
package config
