package book

import (
	"errors"
	"fmt"
	"strings"
)

// Failure taxonomy for the pipeline. Stages wrap these with
// fmt.Errorf("...: %w", ...) and callers match with errors.Is.
var (
	ErrInvalidInput             = errors.New("invalid input")
	ErrNoCandidateFound         = errors.New("no candidate found")
	ErrNoDownloadableFormat     = errors.New("no downloadable format")
	ErrDownloadFailed           = errors.New("download failed")
	ErrCorruptDownload          = errors.New("corrupt download")
	ErrConversionFailed         = errors.New("conversion failed")
	ErrNoTranscriptSource       = errors.New("no transcript source")
	ErrTranscriptionUnavailable = errors.New("transcription unavailable")
)

// Exit codes for the CLI. The mapping is stable; scripts may rely on it.
const (
	ExitOK                       = 0
	ExitInternal                 = 1
	ExitInvalidInput             = 2
	ExitNoCandidateFound         = 3
	ExitNoDownloadableFormat     = 4
	ExitDownloadFailed           = 5
	ExitCorruptDownload          = 6
	ExitConversionFailed         = 7
	ExitNoTranscriptSource       = 8
	ExitTranscriptionUnavailable = 9
)

// ExitCode maps an error to its documented exit code. Unrecognized
// errors map to ExitInternal; nil maps to ExitOK.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInvalidInput):
		return ExitInvalidInput
	case errors.Is(err, ErrNoCandidateFound):
		return ExitNoCandidateFound
	case errors.Is(err, ErrNoDownloadableFormat):
		return ExitNoDownloadableFormat
	case errors.Is(err, ErrCorruptDownload):
		return ExitCorruptDownload
	case errors.Is(err, ErrDownloadFailed):
		return ExitDownloadFailed
	case errors.Is(err, ErrConversionFailed):
		return ExitConversionFailed
	case errors.Is(err, ErrNoTranscriptSource):
		return ExitNoTranscriptSource
	case errors.Is(err, ErrTranscriptionUnavailable):
		return ExitTranscriptionUnavailable
	default:
		return ExitInternal
	}
}

// ConversionError reports that every usable converter was tried and
// none produced a PDF. Attempts holds the full chain outcome in
// invocation order, including skipped converters.
type ConversionError struct {
	Attempts []ConversionAttempt
}

// Error implements the error interface.
func (e *ConversionError) Error() string {
	if len(e.Attempts) == 0 {
		return "conversion failed: no converters available"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		switch {
		case a.Skipped:
			parts = append(parts, fmt.Sprintf("%s: skipped (not installed)", a.Converter))
		case a.Err != "":
			parts = append(parts, fmt.Sprintf("%s: %s", a.Converter, a.Err))
		default:
			parts = append(parts, a.Converter)
		}
	}
	return "conversion failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrConversionFailed) match.
func (e *ConversionError) Is(target error) bool {
	return target == ErrConversionFailed
}
