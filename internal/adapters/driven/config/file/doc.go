// Package file provides file-based configuration and prompt storage.
// Configuration is a TOML file under the application config directory;
// prompts are user-editable text files with embedded defaults.
package file
