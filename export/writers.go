// Package export writes book summaries to CSV and JSON Lines files.
package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/aluiziolira/go-openlibrary-books/models"
	"github.com/aluiziolira/go-openlibrary-books/parser"
)

// Writer is implemented by every output format.
type Writer interface {
	Write(books []models.BookSummary) error
	Close() error
	Validate() error
}

// Record is the exported shape of a summary.
type Record struct {
	models.BookSummary
	CoverURL string `json:"cover_url,omitempty"`
}

// NewRecord resolves the cover URL of b against covers.
func NewRecord(b models.BookSummary, covers parser.CoverResolver) Record {
	coverURL, _ := covers.URL(b.CoverID, parser.CoverMedium)
	return Record{BookSummary: b, CoverURL: coverURL}
}

var csvHeader = []string{"id", "title", "authors", "first_publish_year", "cover_id", "cover_url", "subject_tags"}

// CSVWriter writes summaries to CSV. Multi-valued fields are joined with "; ".
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	covers parser.CoverResolver
	mu     sync.Mutex
}

// NewCSVWriter creates filename and writes the header row.
func NewCSVWriter(filename string, covers parser.CoverResolver) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
		covers: covers,
	}, nil
}

// Write appends books to the CSV output.
func (cw *CSVWriter) Write(books []models.BookSummary) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, book := range books {
		rec := NewRecord(book, cw.covers)
		row := []string{
			rec.ID,
			rec.Title,
			strings.Join(rec.Authors, "; "),
			optionalInt(rec.FirstPublishYear),
			optionalInt(rec.CoverID),
			rec.CoverURL,
			strings.Join(rec.SubjectTags, "; "),
		}
		if err := cw.writer.Write(row); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content.
func (cw *CSVWriter) Validate() error {
	return validateFile("csv", cw.file)
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	covers  parser.CoverResolver
	mu      sync.Mutex
}

// NewJSONWriter creates filename for JSON Lines output.
func NewJSONWriter(filename string, covers parser.CoverResolver) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
		covers:  covers,
	}, nil
}

// Write appends books in JSONL format.
func (jw *JSONWriter) Write(books []models.BookSummary) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, book := range books {
		if err := jw.encoder.Encode(NewRecord(book, jw.covers)); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	return validateFile("json", jw.file)
}

// New opens a writer for format. Dual output writes filename as CSV and
// DualJSONPath(filename) as JSON Lines.
func New(format, filename string, covers parser.CoverResolver) (Writer, error) {
	switch format {
	case "json":
		return NewJSONWriter(filename, covers)
	case "csv":
		return NewCSVWriter(filename, covers)
	case "dual":
		csvWriter, err := NewCSVWriter(filename, covers)
		if err != nil {
			return nil, err
		}
		jsonWriter, err := NewJSONWriter(DualJSONPath(filename), covers)
		if err != nil {
			csvWriter.Close()
			return nil, err
		}
		return fanout{csvWriter, jsonWriter}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// DualJSONPath is where dual output puts the JSON Lines copy of filename.
func DualJSONPath(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".jsonl"
}

// fanout writes the same books to several writers. Close and Validate visit
// every writer and join the failures.
type fanout []Writer

func (f fanout) Write(books []models.BookSummary) error {
	for _, w := range f {
		if err := w.Write(books); err != nil {
			return err
		}
	}
	return nil
}

func (f fanout) Close() error {
	var errs []error
	for _, w := range f {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

func (f fanout) Validate() error {
	var errs []error
	for _, w := range f {
		errs = append(errs, w.Validate())
	}
	return errors.Join(errs...)
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func validateFile(kind string, f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s file: %w", kind, err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("%s file is empty", kind)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
