// Package config loads Vico's environment-variable-driven configuration
// and resolves its on-disk paths.
//
// # Configuration Loading
//
// Load reads, in increasing precedence:
//
//  1. An optional .env file (github.com/joho/godotenv), skipped if absent.
//  2. An optional JSONC overlay file (VICO_CONFIG, default
//     <config dir>/vico.jsonc) for small operator tweaks not worth an
//     environment variable, parsed with github.com/tidwall/jsonc.
//  3. The process environment, matching the CHAT_MODEL_NAME,
//     AGENTIC_MODEL_NAME, IMAGE_MODEL_NAME and AGENTIC_*/IMAGE_* sampler
//     variables.
//
// # Path Management
//
// GetPaths returns XDG Base Directory Specification paths for Vico's
// on-disk state (memory and research SQLite databases, the config
// overlay), adapted to APPDATA on Windows.
package config
