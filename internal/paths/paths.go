// Package paths centralizes file and directory names used across the project.
// All data directory file names are defined here as the single source of truth.
package paths

import "path/filepath"

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	ConfigFile      = "config.toml"
	LogFile         = "wisdomcard.log"
	DatabaseFile    = "wisdomcard.db"
	UploadsDir      = "uploads"
	ExportsDir      = "exports"
	FontCacheDir    = "fonts"
	ContentCacheDir = "content-cache"
	ServeLockFile   = "serve.lock"
)

// BinaryName is the name of the installed executable.
const BinaryName = "wisdomcard"

// DataDirRel is the data directory relative to $HOME.
const DataDirRel = ".wisdomcard"

// LogoBuiltin selects the generated branding mark instead of a file or URL.
const LogoBuiltin = "builtin"

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// Database returns the full path to the SQLite database.
func (d DataDir) Database() string { return filepath.Join(d.Root, DatabaseFile) }

// Uploads returns the directory holding uploaded background media.
func (d DataDir) Uploads() string { return filepath.Join(d.Root, UploadsDir) }

// Exports returns the default directory for rendered PNG files.
func (d DataDir) Exports() string { return filepath.Join(d.Root, ExportsDir) }

// FontCache returns the directory holding downloaded font files.
func (d DataDir) FontCache() string { return filepath.Join(d.Root, FontCacheDir) }

// ContentCache returns the directory holding cached generation responses.
func (d DataDir) ContentCache() string { return filepath.Join(d.Root, ContentCacheDir) }

// ServeLock returns the lock file guarding a single running server.
func (d DataDir) ServeLock() string { return filepath.Join(d.Root, ServeLockFile) }

// Resolve returns p unchanged when absolute, otherwise joined onto the root.
// An empty p stays empty.
func (d DataDir) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(d.Root, p)
}
