// Package json hides the choice between encoding/json and bytedance/sonic
// behind one Encoder. Run records and CLI reports are encoded through it.
package json

import (
	"io"
)

// Library defines which JSON library to use
type Library string

const (
	LibraryStandard Library = "standard" // encoding/json
	LibrarySonic    Library = "sonic"    // bytedance/sonic
)

// Encoder encodes and decodes JSON with one library and one set of options
type Encoder interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error

	// Write encodes v to w followed by a newline.
	Write(w io.Writer, v interface{}) error
}

// Config holds JSON configuration
type Config struct {
	Library    Library
	Indent     bool
	EscapeHTML bool
}

// New returns an encoder for cfg. An empty library means the standard one.
func New(cfg Config) (Encoder, error) {
	switch cfg.Library {
	case LibrarySonic:
		return newSonicEncoder(cfg), nil
	case LibraryStandard, "":
		return newStandardEncoder(cfg), nil
	default:
		return nil, &UnknownLibraryError{Library: cfg.Library}
	}
}

// UnknownLibraryError is returned by New for an unsupported library name
type UnknownLibraryError struct {
	Library Library
}

func (e *UnknownLibraryError) Error() string {
	return "unknown json library: " + string(e.Library)
}

const indent = "  "
