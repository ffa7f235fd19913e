// Package transcript turns audiobook transcripts into paginated PDF
// documents. Transcripts come from an existing file (plain text, SRT,
// or WebVTT) or from local audio transcription.
package transcript

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zenithu-s/book-downloader/internal/book"
)

// cueTiming matches a subtitle timing span like
// "00:00:01,000 --> 00:00:04,000" (SRT) or "01:02.500 --> 01:04.000" (WebVTT).
var cueTiming = regexp.MustCompile(`(?m)^\s*(?:\d{1,2}:)?\d{1,2}:\d{2}[.,]\d{1,3}\s+-->\s+(?:\d{1,2}:)?\d{1,2}:\d{2}[.,]\d{1,3}`)

// ParseFile reads a transcript from disk and splits it into segments.
func ParseFile(path string) (book.Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return book.Transcript{}, fmt.Errorf("failed to read transcript: %w", err)
	}
	return Parse(string(data)), nil
}

// Parse splits transcript text into ordered segments. SRT and WebVTT
// input yields one segment per cue with timestamps preserved; anything
// else is treated as plain text with one segment per blank-line
// paragraph, single newlines kept as soft breaks.
func Parse(text string) book.Transcript {
	text = strings.TrimPrefix(text, "\uFEFF")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var segments []book.Segment
	if isSubtitle(text) {
		segments = parseCues(text)
	} else {
		segments = parseParagraphs(text)
	}

	return book.Transcript{Segments: segments, Source: book.TranscriptFromFile}
}

func isSubtitle(text string) bool {
	if strings.HasPrefix(strings.TrimSpace(text), "WEBVTT") {
		return true
	}
	return cueTiming.MatchString(text)
}

// parseCues walks blank-line-separated blocks and keeps those carrying
// a timing span. Cue numbers, identifiers, and header/NOTE blocks have
// no timing line and drop out.
func parseCues(text string) []book.Segment {
	var segments []book.Segment

	for _, block := range strings.Split(text, "\n\n") {
		lines := strings.Split(block, "\n")

		timingIdx := -1
		for i, line := range lines {
			if strings.Contains(line, "-->") && cueTiming.MatchString(line) {
				timingIdx = i
				break
			}
		}
		if timingIdx == -1 {
			continue
		}

		start, end := parseTimingLine(lines[timingIdx])

		var textLines []string
		for _, line := range lines[timingIdx+1:] {
			line = strings.TrimSpace(line)
			if line != "" {
				textLines = append(textLines, line)
			}
		}
		if len(textLines) == 0 {
			continue
		}

		// Line breaks inside a cue are display layout, not structure.
		segments = append(segments, book.Segment{
			Text:  strings.Join(textLines, " "),
			Start: start,
			End:   end,
		})
	}

	return segments
}

func parseParagraphs(text string) []book.Segment {
	var segments []book.Segment
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		segments = append(segments, book.Segment{Text: block})
	}
	return segments
}

func parseTimingLine(line string) (start, end time.Duration) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0
	}

	start = parseTimestamp(parts[0])

	// WebVTT permits cue settings after the end timestamp.
	if fields := strings.Fields(parts[1]); len(fields) > 0 {
		end = parseTimestamp(fields[0])
	}
	return start, end
}

// parseTimestamp reads HH:MM:SS.mmm or MM:SS.mmm, tolerating the SRT
// comma separator. Unparseable input yields zero.
func parseTimestamp(s string) time.Duration {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	parts := strings.Split(s, ":")

	var hours, minutes int
	var seconds float64
	var err error

	switch len(parts) {
	case 3:
		if hours, err = strconv.Atoi(parts[0]); err != nil {
			return 0
		}
		if minutes, err = strconv.Atoi(parts[1]); err != nil {
			return 0
		}
		if seconds, err = strconv.ParseFloat(parts[2], 64); err != nil {
			return 0
		}
	case 2:
		if minutes, err = strconv.Atoi(parts[0]); err != nil {
			return 0
		}
		if seconds, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return 0
		}
	default:
		return 0
	}

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
}
