package batch

import (
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"
)

// WriteCSV writes rows (a slice of one of the row types) with a header line.
func WriteCSV(w io.Writer, rows any) error {
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func WriteCSVFile(path string, rows any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadCSV loads rows written by WriteCSV into out, a pointer to a slice.
func ReadCSV(r io.Reader, out any) error {
	if err := gocsv.Unmarshal(r, out); err != nil {
		return fmt.Errorf("read csv: %w", err)
	}
	return nil
}
