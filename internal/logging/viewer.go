package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Entry is one parsed line of the JSON debug log.
type Entry struct {
	Time  time.Time
	Level string
	Msg   string
	Attrs map[string]any
	Raw   string
	Valid bool
}

// ViewerConfig controls filtering and rendering of log entries.
type ViewerConfig struct {
	// MinLevel drops entries below this level. Empty keeps everything.
	MinLevel string
	// Pattern keeps only raw lines it matches.
	Pattern *regexp.Regexp
	// NoColor disables ANSI coloring of the level tag.
	NoColor bool
}

// Viewer reads, filters, and formats azmig's JSON log file.
type Viewer struct {
	cfg ViewerConfig
	out io.Writer
}

// NewViewer creates a viewer that writes formatted entries to out.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	return &Viewer{cfg: cfg, out: out}
}

// maxLineBytes bounds a single log line; slog entries with large attrs
// stay well under this.
const maxLineBytes = 1024 * 1024

// Tail returns the entries among the last n lines of the file that
// pass the configured filters.
func (v *Viewer) Tail(path string, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Ring of the last n raw lines so a large log is never held whole.
	ring := make([]string, n)
	count := 0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, maxLineBytes), maxLineBytes)
	for scanner.Scan() {
		ring[count%n] = scanner.Text()
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	kept := count
	if kept > n {
		kept = n
	}

	var entries []Entry
	for i := 0; i < kept; i++ {
		idx := i
		if count > n {
			idx = (count + i) % n
		}
		entry := v.parseLine(ring[idx])
		if v.keep(entry) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Follow streams entries appended to the file into the channel until
// the context is cancelled. Existing content is skipped.
func (v *Viewer) Follow(ctx context.Context, path string, entries chan<- Entry) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReader(file)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for {
				line, err := reader.ReadString('\n')
				if err != nil {
					break
				}
				line = strings.TrimSuffix(line, "\n")
				if line == "" {
					continue
				}
				entry := v.parseLine(line)
				if !v.keep(entry) {
					continue
				}
				select {
				case entries <- entry:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// Print writes formatted entries to the viewer's output.
func (v *Viewer) Print(entries []Entry) {
	for _, entry := range entries {
		_, _ = fmt.Fprintln(v.out, v.FormatEntry(entry))
	}
}

// FormatEntry renders one entry as "HH:MM:SS.mmm LEVEL msg k=v ...".
// Lines that did not parse as JSON pass through unchanged.
func (v *Viewer) FormatEntry(entry Entry) string {
	if !entry.Valid {
		return entry.Raw
	}

	var b strings.Builder
	b.WriteString(entry.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(v.levelTag(entry.Level))
	b.WriteByte(' ')
	b.WriteString(entry.Msg)

	// Attrs in key order so repeated runs render identically
	keys := make([]string, 0, len(entry.Attrs))
	for k := range entry.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Attrs[k])
	}

	return b.String()
}

// parseLine decodes a slog JSON line. Anything that is not JSON comes
// back with Valid=false and the raw text preserved.
func (v *Viewer) parseLine(line string) Entry {
	entry := Entry{Raw: line}

	var data map[string]any
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		return entry
	}
	entry.Valid = true

	if t, ok := data["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			entry.Time = parsed
		}
	}
	if l, ok := data["level"].(string); ok {
		entry.Level = l
	}
	if m, ok := data["msg"].(string); ok {
		entry.Msg = m
	}

	entry.Attrs = make(map[string]any)
	for k, val := range data {
		switch k {
		case "time", "level", "msg":
		default:
			entry.Attrs[k] = val
		}
	}
	return entry
}

// keep applies the level and pattern filters.
func (v *Viewer) keep(entry Entry) bool {
	if v.cfg.MinLevel != "" && LevelFromString(entry.Level) < LevelFromString(v.cfg.MinLevel) {
		return false
	}
	if v.cfg.Pattern != nil && !v.cfg.Pattern.MatchString(entry.Raw) {
		return false
	}
	return true
}

// levelTag renders the level as a fixed-width, optionally colored tag.
func (v *Viewer) levelTag(level string) string {
	tag := strings.ToUpper(level)
	if len(tag) > 5 {
		tag = tag[:5]
	}
	tag = fmt.Sprintf("%-5s", tag)

	if v.cfg.NoColor {
		return tag
	}

	switch strings.ToLower(level) {
	case "debug":
		return "\033[90m" + tag + "\033[0m"
	case "info":
		return "\033[32m" + tag + "\033[0m"
	case "warn", "warning":
		return "\033[33m" + tag + "\033[0m"
	case "error":
		return "\033[31m" + tag + "\033[0m"
	default:
		return tag
	}
}
