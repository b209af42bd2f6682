// Package wisdomcard provides embedded assets for the wisdomcard CLI.
//
// The root package exists solely to embed [config.default.toml] via
// [DefaultConfigTOML]. The CLI copies it into the data directory on first
// run so users start from a commented file.
package wisdomcard

import _ "embed"

// DefaultConfigTOML holds the raw bytes of config.default.toml, embedded at
// build time. It is regenerated by `go generate ./internal/config`.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
