// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package system

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/goccy/go-json"
)

// LogEntry is one parsed line of the error log.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Message   string `json:"message"`
}

// ErrNoLogFile is returned when no log file is configured.
var ErrNoLogFile = errors.New("no log file configured")

var plainLogLine = regexp.MustCompile(`^\[(.*?)\]\s+(\w+):\s+(.*)$`)

// parseLogLine understands the JSON lines zerolog writes and the
// "[time] TYPE: message" format. Anything else is UNKNOWN.
func parseLogLine(line string) LogEntry {
	if strings.HasPrefix(line, "{") {
		var rec struct {
			Level   string `json:"level"`
			Time    string `json:"time"`
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal([]byte(line), &rec) == nil && rec.Level != "" {
			msg := rec.Message
			if rec.Error != "" {
				msg = strings.TrimSpace(msg + ": " + rec.Error)
			}
			return LogEntry{Timestamp: rec.Time, Type: strings.ToUpper(rec.Level), Message: msg}
		}
	}
	if m := plainLogLine.FindStringSubmatch(line); m != nil {
		return LogEntry{Timestamp: m[1], Type: strings.ToUpper(m[2]), Message: m[3]}
	}
	return LogEntry{Type: "UNKNOWN", Message: line}
}

var quietLevels = []string{"TRACE", "DEBUG", "INFO"}

// ErrorLogs returns up to limit of the newest warning-or-worse entries,
// newest first. A missing file yields no entries.
func (s *Service) ErrorLogs(limit int) ([]LogEntry, error) {
	if s.opts.Paths.LogFile == "" {
		return nil, ErrNoLogFile
	}
	if limit <= 0 {
		limit = 100
	}
	f, err := os.Open(s.opts.Paths.LogFile)
	if errors.Is(err, fs.ErrNotExist) {
		return []LogEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	// ring of the last limit entries
	ring := make([]LogEntry, 0, limit)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		e := parseLogLine(line)
		if slices.Contains(quietLevels, e.Type) {
			continue
		}
		if len(ring) == limit {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	slices.Reverse(ring)
	return ring, nil
}

// ClearErrorLogs truncates the log file.
func (s *Service) ClearErrorLogs() error {
	if s.opts.Paths.LogFile == "" {
		return ErrNoLogFile
	}
	err := os.Truncate(s.opts.Paths.LogFile, 0)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear log file: %w", err)
	}
	return nil
}
