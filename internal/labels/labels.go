// Package labels reads classification label files into an index to name table.
//
// Two layouts are understood. Indexed files carry one "<index> <label>" pair
// per line; plain files carry one label per line and the line position is the
// index. The layout is decided from the first line and applied to the whole file.
package labels

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// DefaultEncoding is used by Load.
const DefaultEncoding = "utf-8"

// maxLineSize bounds a single label line.
const maxLineSize = 1 << 20

var (
	// ErrParse is matched by every *ParseError.
	ErrParse = errors.New("malformed label line")
	// ErrEncoding reports an unknown encoding name or undecodable content.
	ErrEncoding = errors.New("label file encoding error")
)

// ParseError describes an indexed-format line that could not be split into an
// index and a label.
type ParseError struct {
	// Line is the 1-based line number.
	Line int
	// Text is the offending line without its terminator.
	Text string
	// Reason is a short description of the problem.
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("labels: line %d %q: %s", e.Line, e.Text, e.Reason)
}

// Is reports ErrParse so callers can match without a type assertion.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// Table maps a model output index to a human-readable label.
type Table map[int]string

// Lookup returns the label for id, or the decimal id when the table has none.
func (t Table) Lookup(id int) string {
	if label, ok := t[id]; ok {
		return label
	}
	return strconv.Itoa(id)
}

// Load parses a UTF-8 label file.
func Load(path string) (Table, error) {
	return Parse(path, DefaultEncoding)
}

// Parse reads the label file at path decoded with the named encoding.
// Names follow the WHATWG encoding labels ("utf-8", "latin1", "utf-16le", ...).
func Parse(path, encodingName string) (Table, error) {
	enc, utf8Source, err := lookupEncoding(encodingName)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open label file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if !utf8Source {
		raw, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read label file: %w", err)
		}
		decoded, err := decode(enc, raw)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to decode label file %s", path)
		}
		r = bytes.NewReader(decoded)
	}

	lines, err := readLines(r, utf8Source)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read label file %s", path)
	}

	return parseLines(lines)
}

// ParseReader parses label lines from r, which must already be UTF-8.
func ParseReader(r io.Reader) (Table, error) {
	lines, err := readLines(r, true)
	if err != nil {
		return nil, err
	}
	return parseLines(lines)
}

// decode converts raw to UTF-8. The x/text decoders substitute U+FFFD for
// input they cannot map, so a replacement character that does not survive
// re-encoding back to raw marks undecodable content.
func decode(enc encoding.Encoding, raw []byte) ([]byte, error) {
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if !bytes.ContainsRune(decoded, utf8.RuneError) {
		return decoded, nil
	}
	again, err := enc.NewEncoder().Bytes(decoded)
	if err != nil || !bytes.Equal(again, raw) {
		return nil, fmt.Errorf("%w: content is not valid for the encoding", ErrEncoding)
	}
	return decoded, nil
}

func lookupEncoding(name string) (encoding.Encoding, bool, error) {
	if name == "" {
		name = DefaultEncoding
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, false, fmt.Errorf("%w: unknown encoding %q", ErrEncoding, name)
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		return nil, false, fmt.Errorf("%w: unknown encoding %q", ErrEncoding, name)
	}
	return enc, canonical == "utf-8", nil
}

func readLines(r io.Reader, validate bool) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)

	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if validate && !utf8.ValidString(line) {
			return nil, fmt.Errorf("%w: line %d is not valid utf-8", ErrEncoding, len(lines)+1)
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func parseLines(lines []string) (Table, error) {
	if len(lines) == 0 {
		return Table{}, nil
	}

	head, _, _ := strings.Cut(lines[0], " ")
	if !isDigits(head) {
		table := make(Table, len(lines))
		for i, line := range lines {
			table[i] = strings.TrimSpace(line)
		}
		return table, nil
	}

	table := make(Table, len(lines))
	for i, line := range lines {
		index, label, ok := strings.Cut(line, " ")
		if !ok {
			return nil, &ParseError{Line: i + 1, Text: line, Reason: "missing label after index"}
		}
		if !isDigits(index) {
			return nil, &ParseError{Line: i + 1, Text: line, Reason: "index is not a non-negative integer"}
		}
		id, err := strconv.Atoi(index)
		if err != nil {
			return nil, &ParseError{Line: i + 1, Text: line, Reason: "index out of range"}
		}
		table[id] = strings.TrimSpace(label)
	}
	return table, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
