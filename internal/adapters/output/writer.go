// Package output provides adapters for writing application output.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/MyCarrier-DevOps/stage-resolve/internal/domain"
)

// Format selects the output encoding of the resolution.
type Format string

const (
	// FormatDotenv emits KEY=value lines, directly usable as a GitLab
	// artifacts:reports:dotenv file.
	FormatDotenv Format = "dotenv"

	// FormatJSON emits the resolution as a single JSON object.
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned for output formats other than dotenv and json.
var ErrUnknownFormat = fmt.Errorf("unknown output format (expected %q or %q)", FormatDotenv, FormatJSON)

// Writer writes the resolution to the configured output destination.
// By default, it writes to stdout.
type Writer struct {
	out    io.Writer
	format Format
}

// NewWriter creates a new Writer that writes to stdout in the given format.
func NewWriter(format Format) *Writer {
	return &Writer{out: os.Stdout, format: format}
}

// NewWriterWithOutput creates a new Writer with a custom output destination.
// This is useful for testing.
func NewWriterWithOutput(out io.Writer, format Format) *Writer {
	return &Writer{out: out, format: format}
}

// WriteResolution writes the resolution in the writer's format.
func (w *Writer) WriteResolution(res *domain.Resolution) error {
	switch w.format {
	case FormatDotenv, "":
		return w.writeDotenv(res)
	case FormatJSON:
		return w.writeJSON(res)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, w.format)
	}
}

// writeDotenv emits the three values deploy jobs consume. The image
// reference stays in the literal "base:tag" format.
func (w *Writer) writeDotenv(res *domain.Resolution) error {
	_, err := fmt.Fprintf(w.out,
		"VERSION_TAG=%s\nIMAGE_REFERENCE=%s\nSTAGE_ELIGIBILITY=%s\n",
		res.VersionTag, res.ImageReference, res.Eligibility)
	return err
}

func (w *Writer) writeJSON(res *domain.Resolution) error {
	enc := json.NewEncoder(w.out)
	return enc.Encode(res)
}
