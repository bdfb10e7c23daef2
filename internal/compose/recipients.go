package compose

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var ErrNoRecipients = errors.New("No valid emails found in the file") //nolint:staticcheck // shown to the operator verbatim

// ParseRecipientList keeps every trimmed line that contains an "@". It is a
// heuristic, not an address parser.
func ParseRecipientList(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read recipient list: %w", err)
	}

	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && strings.Contains(line, "@") {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoRecipients
	}
	return out, nil
}

// ImportRecipients appends the addresses found in r to list and returns how
// many were added.
func (m *Model) ImportRecipients(list List, r io.Reader) (int, error) {
	addresses, err := ParseRecipientList(r)
	if err != nil {
		return 0, err
	}
	m.Dispatch(AppendRecipients{List: list, Addresses: addresses})
	return len(addresses), nil
}

func (m *Model) ImportRecipientFile(list List, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open recipient list: %w", err)
	}
	defer f.Close()
	return m.ImportRecipients(list, f)
}

// ImportSummary is the operator-facing confirmation for an import.
func ImportSummary(n int, list List) string {
	return fmt.Sprintf("Imported %d emails to %s", n, strings.ToUpper(string(list)))
}
