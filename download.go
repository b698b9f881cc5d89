package datamine

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Download streams every remaining record to a comma-separated UTF-8 file,
// writing the header row first when header is true. Records are written one
// at a time; the result set is never buffered in memory.
//
// The target's parent directory must exist and be writable, and an existing
// target file must itself be writable; each violation fails with a
// descriptive error before anything is written. Downloading with no result
// stream open fails with ErrNoResult.
func (s *Session) Download(filename string, header bool) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(filename)
	info, statErr := os.Stat(dir)
	if statErr != nil || !info.IsDir() {
		return fmt.Errorf("datamine: %s is not a valid directory", dir)
	}
	if accessErr := unix.Access(dir, unix.W_OK); accessErr != nil {
		return fmt.Errorf("datamine: %s is not a writable directory: %w", dir, accessErr)
	}
	if _, statErr := os.Stat(filename); statErr == nil {
		if accessErr := unix.Access(filename, unix.W_OK); accessErr != nil {
			return fmt.Errorf("datamine: %s is not a writable file: %w", filename, accessErr)
		}
	}

	columns := s.columnsLocked()
	if columns == nil {
		return fmt.Errorf("datamine: cannot download to %s: %w", filename, ErrNoResult)
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("datamine: failed to create %s: %w", filename, err)
	}
	defer func() {
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
	}()

	w := csv.NewWriter(f)
	if header {
		if err := w.Write(columns); err != nil {
			return err
		}
	}

	for {
		record, err := s.fetchOneLocked()
		if err != nil {
			return err
		}
		if record == nil {
			break
		}
		row := make([]string, len(columns))
		for i, column := range columns {
			row[i] = record[column]
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
