// Package storage defines the content-root file-system abstraction.
package storage

// Provider is the interface for content and output file operations.
// All paths are slash-separated and relative to the provider root.
type Provider interface {
	// Glob returns the regular files matching a doublestar pattern in
	// lexical order.
	Glob(pattern string) ([]string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}
