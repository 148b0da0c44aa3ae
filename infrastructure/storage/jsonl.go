package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ahrav/go-zsb/internal/domain"
)

// ReadJSONL decodes one record per non-blank line. Numbers are kept as
// json.Number so integer fields survive a read-write cycle unchanged.
func ReadJSONL(path string) ([]domain.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var records []domain.Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for n := 1; sc.Scan(); n++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var rec domain.Record
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, n, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

// WriteJSONL writes one compact JSON object per line. Non-ASCII text is
// written as UTF-8, not escaped.
func WriteJSONL(path string, records []domain.Record) error {
	return writeFile(path, func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for i, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
		}
		return nil
	})
}
