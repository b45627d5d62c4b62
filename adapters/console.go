package adapters

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// ReadConsole emits trimmed, lower-cased non-empty lines read from r. The
// channel is closed at end of input or when ctx is done.
func ReadConsole(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.ToLower(strings.TrimSpace(scanner.Text()))
			if line == "" {
				continue
			}

			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	return lines
}
