// Package logging provides structured JSON logging (log/slog) for the
// search core, written to a size-rotated file under ~/.stract/logs/ and,
// when enabled in Config, mirrored to stderr. The searcher command always
// writes the file log and mirrors it to stderr.
package logging
