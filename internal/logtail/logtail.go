package logtail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Read returns the last maxLines lines of the file at path. maxLines <= 0
// returns every line. A missing file yields no lines and no error.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	var (
		ring  []string
		next  int
		total int
	)
	if maxLines > 0 {
		ring = make([]string, maxLines)
	}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		total++
		if maxLines <= 0 {
			ring = append(ring, scanner.Text())
			continue
		}
		ring[next] = scanner.Text()
		next = (next + 1) % maxLines
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	if maxLines <= 0 {
		return ring, nil
	}
	if total < maxLines {
		return ring[:total], nil
	}
	lines := make([]string, 0, maxLines)
	lines = append(lines, ring[next:]...)
	return append(lines, ring[:next]...), nil
}

// Filter keeps JSON lines at or above min. Lines that are not JSON log
// events are kept as-is.
func Filter(lines []string, min zerolog.Level) []string {
	if min <= zerolog.TraceLevel {
		return lines
	}
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		level, ok := levelOf(line)
		if !ok || level >= min {
			kept = append(kept, line)
		}
	}
	return kept
}

func levelOf(line string) (zerolog.Level, bool) {
	var event struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal([]byte(line), &event); err != nil || event.Level == "" {
		return zerolog.NoLevel, false
	}
	level, err := zerolog.ParseLevel(event.Level)
	if err != nil {
		return zerolog.NoLevel, false
	}
	return level, true
}

// Render writes lines in zerolog's console format. Lines that do not decode
// are written unchanged.
func Render(w io.Writer, lines []string, color bool) error {
	console := zerolog.ConsoleWriter{Out: w, NoColor: !color, TimeFormat: time.DateTime}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, err := console.Write([]byte(line)); err == nil {
			continue
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}
