package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/leapstack-labs/leapstar/pkg/core"
	"github.com/leapstack-labs/leapstar/pkg/dataset"
)

const utf8BOM = "\ufeff"

// CSVSource reads a delimited text file with a header row.
type CSVSource struct {
	Path string
	// Delimiter is detected from the header when zero.
	Delimiter rune
	// Encoding is utf-8 (default), latin1 or windows-1252.
	Encoding string
	// Columns limits the load to these header names, in this order.
	// Empty loads every column.
	Columns []string
}

// Describe returns the file path.
func (s *CSVSource) Describe() string { return "csv:" + s.Path }

// Load reads the whole file. Every value is kept as a string; empty cells
// stay empty and are treated as null when cast.
func (s *CSVSource) Load(ctx context.Context) (*dataset.Dataset, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.Path, err)
	}
	defer func() { _ = f.Close() }()

	ds, err := s.read(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return ds, nil
}

func (s *CSVSource) read(ctx context.Context, r io.Reader) (*dataset.Dataset, error) {
	enc, err := lookupEncoding(s.Encoding)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(enc.NewDecoder().Reader(r))

	delim := s.Delimiter
	if delim == 0 {
		first, err := br.Peek(4096)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return nil, err
		}
		delim = detectDelimiter(string(first))
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.ReuseRecord = true
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header = stripHeaderBOM(append([]string(nil), header...))

	positions, names, err := selectColumns(header, s.Columns)
	if err != nil {
		return nil, err
	}
	fields := make([]core.Field, len(names))
	for i, name := range names {
		fields[i] = core.Field{Name: name, Type: core.TypeString}
	}

	ds := dataset.New(fields...)
	row := make([]any, len(positions))
	for line := 2; ; line++ {
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		for i, p := range positions {
			row[i] = rec[p]
		}
		if err := ds.Append(row...); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	return ds, nil
}

// selectColumns maps wanted header names to record positions.
func selectColumns(header, wanted []string) ([]int, []string, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, dup := index[h]; dup {
			return nil, nil, fmt.Errorf("duplicate header column %s", h)
		}
		index[h] = i
	}
	if len(wanted) == 0 {
		wanted = make([]string, len(header))
		for i, h := range header {
			wanted[i] = strings.TrimSpace(h)
		}
	}
	positions := make([]int, len(wanted))
	for i, name := range wanted {
		p, ok := index[name]
		if !ok {
			return nil, nil, fmt.Errorf("column %s not found in header", name)
		}
		positions[i] = p
	}
	return positions, wanted, nil
}

func stripHeaderBOM(header []string) []string {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	return header
}

// detectDelimiter picks the most frequent candidate in the header line.
func detectDelimiter(sample string) rune {
	header, _, _ := strings.Cut(sample, "\n")
	best, bestCount := ',', 0
	for _, c := range []rune{';', ',', '|', '\t'} {
		if n := strings.Count(header, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "", "utf-8", "utf8":
		return unicode.UTF8, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}
