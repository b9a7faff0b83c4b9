package data

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"salesforecast/pkg/errs"
)

// LoadOptions controls how a delimited source is read.
type LoadOptions struct {
	Delimiter rune // default ','
	TrimSpace bool // trim surrounding whitespace from every cell
}

// DefaultLoadOptions returns comma-delimited options with trimming on.
func DefaultLoadOptions() *LoadOptions {
	return &LoadOptions{Delimiter: ',', TrimSpace: true}
}

// Load reads a delimited file with a header row into a Table.
// A missing file is reported as errs.ErrNotFound.
func Load(path string, opts *LoadOptions) (*Table, error) {
	file, err := open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	t, err := LoadReader(bufio.NewReader(file), opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return t, nil
}

// LoadReader reads a delimited source with a header row into a Table.
func LoadReader(r io.Reader, opts *LoadOptions) (*Table, error) {
	if opts == nil {
		opts = DefaultLoadOptions()
	}
	reader := newReader(r, opts)

	header, err := readHeader(reader, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.DataWrap(err, "read row %d", len(rows)+2)
		}
		rows = append(rows, clean(rec, opts))
	}
	return NewTable(header, rows)
}

func open(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.NotFound(err, "input %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return file, nil
}

func newReader(r io.Reader, opts *LoadOptions) *csv.Reader {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.TrimLeadingSpace = opts.TrimSpace
	return reader
}

func readHeader(reader *csv.Reader, opts *LoadOptions) ([]string, error) {
	header, err := reader.Read()
	if err == io.EOF {
		return nil, errs.Data("input is empty")
	}
	if err != nil {
		return nil, errs.DataWrap(err, "read header")
	}
	header = clean(header, opts)
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	return header, nil
}

func clean(rec []string, opts *LoadOptions) []string {
	out := make([]string, len(rec))
	for i, s := range rec {
		if opts.TrimSpace {
			s = strings.TrimSpace(s)
		}
		out[i] = s
	}
	return out
}

// Row is one streamed data row. Err is set when the row could not be read;
// Line is the 1-based line number in the source including the header.
type Row struct {
	Line   int
	Values []string
	Err    error
}

// StreamRows reads the header synchronously, then streams data rows through
// out from a goroutine. out is closed when the source is exhausted or ctx is
// done. Malformed rows are delivered with Err set rather than skipped.
func StreamRows(ctx context.Context, path string, opts *LoadOptions, out chan<- Row) (header []string, err error) {
	if opts == nil {
		opts = DefaultLoadOptions()
	}
	file, err := open(path)
	if err != nil {
		return nil, err
	}

	reader := newReader(bufio.NewReader(file), opts)
	header, err = readHeader(reader, opts)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stream %s: %w", path, err)
	}

	go func() {
		defer file.Close()
		defer close(out)
		line := 1
		for {
			rec, err := reader.Read()
			if err == io.EOF {
				return
			}
			line++
			row := Row{Line: line}
			if err != nil {
				row.Err = errs.DataWrap(err, "read line %d", line)
			} else {
				row.Values = clean(rec, opts)
			}
			select {
			case <-ctx.Done():
				return
			case out <- row:
			}
		}
	}()
	return header, nil
}

// Batch is a group of consecutive streamed rows.
type Batch struct {
	Rows []Row
}

// Batcher groups rows from in into batches of batchSize and sends them on
// out. The final batch may be smaller. out is closed when in is drained or
// ctx is done.
func Batcher(ctx context.Context, in <-chan Row, batchSize int, out chan<- Batch) {
	if batchSize <= 0 {
		batchSize = 1
	}
	go func() {
		defer close(out)
		var rows []Row
		for {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-in:
				if !ok {
					if len(rows) > 0 {
						select {
						case out <- Batch{Rows: rows}:
						case <-ctx.Done():
						}
					}
					return
				}
				rows = append(rows, r)
				if len(rows) == batchSize {
					select {
					case out <- Batch{Rows: rows}:
					case <-ctx.Done():
						return
					}
					rows = nil
				}
			}
		}
	}()
}

// Table builds a Table from the batch, failing on the first unreadable row.
func (b Batch) Table(header []string) (*Table, error) {
	rows := make([][]string, 0, len(b.Rows))
	for _, r := range b.Rows {
		if r.Err != nil {
			return nil, r.Err
		}
		rows = append(rows, r.Values)
	}
	return NewTable(header, rows)
}
