// Package storage reads and writes the pipeline's file artifacts: plain
// line files, JSONL record files, numeric columns and image directories.
package storage

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrUnescapedLineBreak is returned when a line holding LF or CR is written
// without escaping. Such a line would split on read and shift every later
// index.
var ErrUnescapedLineBreak = errors.New("line contains an unescaped line break")

// maxLineSize bounds a single line on read. Escaped candidates for long
// documents can be large.
const maxLineSize = 64 << 20

var (
	escaper   = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)
	unescapes = map[byte]byte{'\\': '\\', 'n': '\n', 'r': '\r'}
)

// Escape encodes backslash, LF and CR so the result fits on one line.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Unescape is the exact inverse of Escape. Unknown escape sequences and a
// trailing lone backslash are kept verbatim.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			if r, ok := unescapes[s[i+1]]; ok {
				b.WriteByte(r)
				i++
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// WriteLines writes one line per element, creating parent directories.
// With escape set every element is escaped; without it an element holding
// a line break is rejected before anything is written.
func WriteLines(path string, lines []string, escape bool) error {
	if !escape {
		for i, line := range lines {
			if strings.ContainsAny(line, "\r\n") {
				return fmt.Errorf("writing %s: line %d: %w", path, i+1, ErrUnescapedLineBreak)
			}
		}
	}
	return writeFile(path, func(w *bufio.Writer) error {
		for _, line := range lines {
			if escape {
				line = Escape(line)
			}
			if _, err := w.WriteString(line); err != nil {
				return err
			}
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadLines returns the lines of path without their terminators. With
// unescape set each line is decoded with Unescape.
func ReadLines(path string, unescape bool) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := sc.Text()
		if unescape {
			line = Unescape(line)
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}

// WriteFloats writes one number per line in the shortest representation
// that round-trips.
func WriteFloats(path string, values []float64) error {
	lines := make([]string, len(values))
	for i, v := range values {
		lines[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return WriteLines(path, lines, false)
}

// WriteInts writes one integer per line.
func WriteInts(path string, values []int) error {
	lines := make([]string, len(values))
	for i, v := range values {
		lines[i] = strconv.Itoa(v)
	}
	return WriteLines(path, lines, false)
}

// ReadFloats parses a file written by WriteFloats or WriteInts.
func ReadFloats(path string) ([]float64, error) {
	lines, err := ReadLines(path, false)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(lines))
	for i, line := range lines {
		v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

// writeFile creates path and its parent directories and hands a buffered
// writer to fill. A partially written file is left in place on error.
func writeFile(path string, fill func(w *bufio.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
