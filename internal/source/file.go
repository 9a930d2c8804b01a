package source

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadList reads one URL per line from r. Blank lines and lines starting
// with # are ignored.
func ReadList(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL list: %w", err)
	}
	return urls, nil
}

// NewFileSource loads the URL list at path into a SliceSource.
func NewFileSource(path string) (*SliceSource, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the --list flag
	if err != nil {
		return nil, fmt.Errorf("failed to open URL list: %w", err)
	}
	defer f.Close()

	urls, err := ReadList(f)
	if err != nil {
		return nil, err
	}
	return NewSliceSource(urls), nil
}
