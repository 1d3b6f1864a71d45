package seed

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Headers of the persisted table files.
const (
	VotesHeader              = "[Votes]"
	ClientConnectionsHeader  = "[ClientConnectionAddresses]"
	ClusterConnectionsHeader = "[SeedInfo]"
)

const entrySeparator = " = "

// Entry is a single key = value line.
type Entry struct {
	Key   string
	Value string
}

// WriteTable writes the header line followed by one "  key = value" line
// per entry.
func WriteTable(w io.Writer, header string, entries []Entry) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, header); err != nil {
		return err
	}
	for _, e := range entries {
		if e.Key == "" || strings.TrimSpace(e.Key) != e.Key ||
			strings.Contains(e.Key, entrySeparator) || strings.ContainsAny(e.Key+e.Value, "\r\n") {
			return fmt.Errorf("entry %q cannot be represented in table format", e.Key)
		}
		if _, err := fmt.Fprintf(bw, "  %s%s%s\n", e.Key, entrySeparator, e.Value); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadTable parses a file produced by WriteTable and returns its header and
// entries. Blank lines are ignored.
func ReadTable(r io.Reader) (string, []Entry, error) {
	scanner := bufio.NewScanner(r)
	var header string
	var entries []Entry
	line := 0

	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		if header == "" {
			header = strings.TrimSpace(text)
			continue
		}
		key, value, ok := strings.Cut(strings.TrimLeft(text, " \t"), entrySeparator)
		if !ok {
			return "", nil, fmt.Errorf("line %d: expected key = value", line)
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return "", nil, err
	}
	if header == "" {
		return "", nil, fmt.Errorf("missing header line")
	}
	return header, entries, nil
}
