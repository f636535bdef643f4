package transfer

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

var (
	errBareQuote = errors.New(`bare " in non-quoted field`)
	errQuote     = errors.New(`extraneous or missing " in quoted field`)
)

// csvSyntaxError is a malformed record. The reader has already skipped to the
// next line, so decoding can continue.
type csvSyntaxError struct{ err error }

func (e *csvSyntaxError) Error() string { return e.err.Error() }
func (e *csvSyntaxError) Unwrap() error { return e.err }

// csvReader splits comma-separated records. Quoted fields keep their bytes
// exactly, carriage returns included; encoding/csv rewrites \r\n inside
// quotes to \n, which would break lossless re-import of exported content.
// Outside quotes a record ends at \n or \r\n and blank lines are skipped.
type csvReader struct {
	br     *bufio.Reader
	field  strings.Builder
	record []string
}

func newCSVReader(r io.Reader) *csvReader {
	return &csvReader{br: bufio.NewReaderSize(r, 64<<10)}
}

// Read returns the next record. The slice is reused by the next call; the
// strings in it are not. io.EOF is returned after the last record.
func (c *csvReader) Read() ([]string, error) {
	for {
		record, err := c.readRecord()
		if err != nil {
			return nil, err
		}
		if record != nil {
			return record, nil
		}
	}
}

// readRecord returns nil, nil for a blank line.
func (c *csvReader) readRecord() ([]string, error) {
	c.record = c.record[:0]
	for {
		c.field.Reset()
		b, err := c.br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && len(c.record) > 0 {
				// "a," at end of input.
				return append(c.record, ""), nil
			}
			return nil, err
		}
		if len(c.record) == 0 {
			blank := b == '\n'
			if b == '\r' {
				if blank, err = c.crlf(); err != nil {
					return nil, err
				}
			}
			if blank {
				return nil, nil
			}
		}

		var end byte
		if b == '"' {
			end, err = c.quoted()
		} else {
			end, err = c.unquoted(b)
		}
		if err != nil {
			return nil, err
		}
		c.record = append(c.record, c.field.String())
		if end != ',' {
			return c.record, nil
		}
	}
}

// unquoted reads a field starting with b. It returns ',' when another field
// follows, '\n' at the end of the line and 0 at the end of input.
func (c *csvReader) unquoted(b byte) (byte, error) {
	for {
		switch b {
		case ',':
			return ',', nil
		case '\n':
			return '\n', nil
		case '"':
			return 0, c.syntax(errBareQuote)
		case '\r':
			eol, err := c.crlf()
			if err != nil {
				return 0, err
			}
			if eol {
				return '\n', nil
			}
			c.field.WriteByte(b)
		default:
			c.field.WriteByte(b)
		}

		var err error
		if b, err = c.br.ReadByte(); err != nil {
			if errors.Is(err, io.EOF) {
				return 0, nil
			}
			return 0, err
		}
	}
}

// quoted reads a field after its opening quote.
func (c *csvReader) quoted() (byte, error) {
	for {
		b, err := c.br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, &csvSyntaxError{errQuote}
			}
			return 0, err
		}
		if b != '"' {
			c.field.WriteByte(b)
			continue
		}

		b, err = c.br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, nil
			}
			return 0, err
		}
		switch b {
		case '"':
			c.field.WriteByte('"')
		case ',':
			return ',', nil
		case '\n':
			return '\n', nil
		case '\r':
			eol, err := c.crlf()
			if err != nil {
				return 0, err
			}
			if !eol {
				return 0, c.syntax(errQuote)
			}
			return '\n', nil
		default:
			return 0, c.syntax(errQuote)
		}
	}
}

// crlf consumes the \n of a \r\n pair, the \r having just been read.
func (c *csvReader) crlf() (bool, error) {
	next, err := c.br.Peek(1)
	if len(next) == 1 && next[0] == '\n' {
		_, _ = c.br.ReadByte()
		return true, nil
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return false, nil
}

// syntax skips the rest of the line and wraps cause.
func (c *csvReader) syntax(cause error) error {
	for {
		_, err := c.br.ReadSlice('\n')
		if err == nil || errors.Is(err, io.EOF) {
			return &csvSyntaxError{cause}
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}
