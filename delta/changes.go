package delta

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteChanges writes each change as four lines: section, parameter, value
// and the encryption flag.
func WriteChanges(w io.Writer, changes []SettingChange) error {
	bw := bufio.NewWriter(w)
	for _, c := range changes {
		for _, field := range []string{c.Section, c.Parameter, c.Value} {
			if strings.ContainsAny(field, "\r\n") {
				return fmt.Errorf("setting %s/%s contains a line break", c.Section, c.Parameter)
			}
		}
		if _, err := fmt.Fprintf(bw, "%s\n%s\n%s\n%t\n", c.Section, c.Parameter, c.Value, c.IsEncrypted); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadChanges parses the output of WriteChanges. Kind is not persisted and
// is reported as ChangeModified.
func ReadChanges(r io.Reader) ([]SettingChange, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(lines)%4 != 0 {
		return nil, fmt.Errorf("changed settings file has %d lines, expected a multiple of 4", len(lines))
	}

	changes := make([]SettingChange, 0, len(lines)/4)
	for i := 0; i < len(lines); i += 4 {
		encrypted, err := strconv.ParseBool(lines[i+3])
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid encryption flag %q", i/4, lines[i+3])
		}
		changes = append(changes, SettingChange{
			Section:     lines[i],
			Parameter:   lines[i+1],
			Value:       lines[i+2],
			IsEncrypted: encrypted,
			Kind:        ChangeModified,
		})
	}
	return changes, nil
}
