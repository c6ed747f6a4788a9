// Package filename builds filesystem-safe download paths for Zoom recordings
package filename

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/curtbushko/zoom-recordings/internal/zoom"
)

// FileSanitizer turns recording metadata into download paths
type FileSanitizer interface {
	// SanitizeTopic converts a meeting topic to a lowercase dash-separated name
	SanitizeTopic(topic string) string

	// FormatTime formats a time as HHMM
	FormatTime(t time.Time) string

	// DateDirectory returns <base>/<yyyy>/<mm>/<dd> for the UTC date of t
	DateDirectory(baseDir string, t time.Time) string

	// PathPrefix returns <base>/<yyyy>/<mm>/<dd>/<topic>-<HHMM>, without extension.
	// Each recording file appends its own extension when saved.
	PathPrefix(baseDir string, recording zoom.Recording) string
}

// FileSanitizerOptions contains configuration options for the file sanitizer
type FileSanitizerOptions struct {
	// MaxTopicLength sets the maximum length for sanitized topic (default: 100)
	MaxTopicLength int

	// DefaultTopic is used when the topic is empty or only contains invalid characters (default: "untitled")
	DefaultTopic string
}

type fileSanitizer struct {
	maxTopicLength int
	defaultTopic   string

	invalidChars   *regexp.Regexp
	multipleSpaces *regexp.Regexp
	multipleDashes *regexp.Regexp
	stripMarks     transform.Transformer
}

// NewFileSanitizer creates a new FileSanitizer with the given options
func NewFileSanitizer(options FileSanitizerOptions) FileSanitizer {
	maxLength := options.MaxTopicLength
	if maxLength <= 0 {
		maxLength = 100
	}

	defaultTopic := options.DefaultTopic
	if defaultTopic == "" {
		defaultTopic = "untitled"
	}

	return &fileSanitizer{
		maxTopicLength: maxLength,
		defaultTopic:   defaultTopic,
		invalidChars:   regexp.MustCompile(`[<>:"/\\|?*]`),
		multipleSpaces: regexp.MustCompile(`\s+`),
		multipleDashes: regexp.MustCompile(`-+`),
		stripMarks:     transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
	}
}

// SanitizeTopic converts a meeting topic to a filesystem-safe lowercase string with dashes
func (fs *fileSanitizer) SanitizeTopic(topic string) string {
	if topic == "" {
		return fs.defaultTopic
	}

	cleaned := fs.invalidChars.ReplaceAllString(fs.normalizeUnicode(topic), " ")

	// Everything that is not a letter or digit separates words
	var words strings.Builder
	for _, r := range cleaned {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			words.WriteRune(r)
		} else {
			words.WriteRune(' ')
		}
	}

	spaced := strings.TrimSpace(fs.multipleSpaces.ReplaceAllString(words.String(), " "))
	dashed := strings.ReplaceAll(strings.ToLower(spaced), " ", "-")
	dashed = strings.Trim(fs.multipleDashes.ReplaceAllString(dashed, "-"), "-")

	if dashed == "" {
		return fs.defaultTopic
	}

	if len(dashed) > fs.maxTopicLength {
		truncated := dashed[:fs.maxTopicLength]
		// Prefer a word boundary when one is close to the limit
		if lastDash := strings.LastIndex(truncated, "-"); lastDash > fs.maxTopicLength*2/3 {
			truncated = truncated[:lastDash]
		}
		dashed = strings.TrimRight(truncated, "-")
	}

	return dashed
}

// normalizeUnicode removes diacritics and drops anything outside printable ASCII
func (fs *fileSanitizer) normalizeUnicode(s string) string {
	result, _, err := transform.String(fs.stripMarks, s)
	if err != nil {
		result = s
	}

	var cleaned strings.Builder
	for _, r := range result {
		switch {
		case r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsPunct(r)):
			cleaned.WriteRune(r)
		case unicode.IsSpace(r):
			cleaned.WriteRune(' ')
		}
	}
	return cleaned.String()
}

// FormatTime formats a time to HHMM format for filename timestamps
func (fs *fileSanitizer) FormatTime(t time.Time) string {
	return t.Format("1504")
}

// DateDirectory returns the date directory for t under baseDir
func (fs *fileSanitizer) DateDirectory(baseDir string, t time.Time) string {
	utc := t.UTC()
	return filepath.Join(baseDir, utc.Format("2006"), utc.Format("01"), utc.Format("02"))
}

// PathPrefix returns the extension-less destination shared by all files of recording
func (fs *fileSanitizer) PathPrefix(baseDir string, recording zoom.Recording) string {
	start := recording.StartTime.UTC()
	name := fs.SanitizeTopic(recording.Topic) + "-" + fs.FormatTime(start)
	return filepath.Join(fs.DateDirectory(baseDir, start), name)
}
