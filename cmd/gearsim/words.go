package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarchlab/gearstream/stream"
)

// errSyntax is returned for a line that is not a word.
var errSyntax = errors.New("bad word line")

// parseWords reads one word per line: a hex (0x...) or decimal payload with
// an optional trailing "last". Blank lines and text after '#' are ignored.
func parseWords(r io.Reader) ([]stream.Word, error) {
	var words []stream.Word

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		w, err := parseWord(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		words = append(words, w)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return words, nil
}

func parseWord(fields []string) (stream.Word, error) {
	if len(fields) > 2 {
		return stream.Word{}, fmt.Errorf("%q: %w", strings.Join(fields, " "), errSyntax)
	}

	var w stream.Word
	if len(fields) == 2 {
		if !strings.EqualFold(fields[1], "last") {
			return stream.Word{}, fmt.Errorf("%q is not \"last\": %w", fields[1], errSyntax)
		}
		w.Last = true
	}

	v, err := strconv.ParseUint(fields[0], 0, 64)
	if err != nil {
		return stream.Word{}, fmt.Errorf("%q: %w", fields[0], errSyntax)
	}
	w.Payload = v

	return w, nil
}

// formatWords writes words in the format parseWords reads, hex padded to
// the stream width.
func formatWords(w io.Writer, words []stream.Word, width int) error {
	digits := (width + 3) / 4
	bw := bufio.NewWriter(w)
	for _, word := range words {
		line := fmt.Sprintf("0x%0*x", digits, word.Payload)
		if word.Last {
			line += " last"
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	return bw.Flush()
}
