// Package main implements the genconfig tool that writes config.default.toml
// from config.DefaultConfig() and config.ConfigDocs.
//
// It is invoked by go generate via the directive in internal/config/config.go.
package main

import (
	"fmt"
	"os"

	"tools.zach/dev/wisdomcard/internal/config"
)

// outPath is relative to internal/config, where go generate runs.
const outPath = "../../config.default.toml"

func main() {
	if err := run(outPath); err != nil {
		fmt.Fprintf(os.Stderr, "genconfig: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("wrote config.default.toml")
}

func run(path string) error {
	data, err := config.Annotated(config.DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
