package datamine

import (
	"github.com/rs/zerolog/log"
)

// Record is one decoded data row keyed by header column name. Column order
// is carried by Session.Columns, not by the map itself.
type Record map[string]string

// Columns returns the result stream's column names, uppercased and trimmed.
// The header row is consumed from the stream on first call and cached:
// repeated calls return the same names without reading further. Returns nil
// when no query has produced a result stream.
func (s *Session) Columns() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.columnsLocked()
}

// columnsLocked parses and caches the header row. Caller holds mu.
func (s *Session) columnsLocked() []string {
	if s.scanner == nil {
		s.columns = nil
		return nil
	}
	if s.columns != nil {
		return s.columns
	}
	if !s.scanner.Scan() {
		return nil
	}
	s.columns = parseHeader(s.scanner.Bytes())
	return s.columns
}

// FetchOne advances the cursor one row and returns the decoded record.
// It returns nil (not an error) at stream end or when no query has been
// executed. Rows whose decoded field count does not match the header are
// skipped silently, consecutive malformed rows included.
func (s *Session) FetchOne() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchOneLocked()
}

// fetchOneLocked advances the cursor one row. Caller holds mu.
func (s *Session) fetchOneLocked() (Record, error) {
	columns := s.columnsLocked()
	if columns == nil {
		s.record = nil
		return nil, nil
	}

	for s.scanner.Scan() {
		fields := decodeFields(s.scanner.Bytes())
		if len(fields) != len(columns) {
			log.Debug().Int("fields", len(fields)).Int("columns", len(columns)).Msg("skipping malformed row")
			continue
		}

		record := make(Record, len(columns))
		for i, column := range columns {
			record[column] = fields[i]
		}
		s.record = record
		return record, nil
	}

	s.record = nil
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

// FetchMany advances the cursor up to n rows, stopping early at stream end.
// A negative n drains the remaining stream.
func (s *Session) FetchMany(n int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []Record
	for n != 0 {
		record, err := s.fetchOneLocked()
		if err != nil {
			return records, err
		}
		if record == nil {
			break
		}
		records = append(records, record)
		if n > 0 {
			n--
		}
	}
	return records, nil
}

// FetchAll drains the remaining stream in order.
func (s *Session) FetchAll() ([]Record, error) {
	return s.FetchMany(-1)
}
