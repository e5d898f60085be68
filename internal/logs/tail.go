package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const defaultPoll = 250 * time.Millisecond

// Options control Stream.
type Options struct {
	// Lines is how many trailing lines to print first. Zero starts at the end.
	Lines int
	// Follow keeps reading until ctx is canceled.
	Follow bool
	// Poll is the follow interval.
	Poll time.Duration
	// Match keeps only lines containing this text, e.g. a campaign id.
	Match string
}

// Stream writes matching log lines to emit.
func Stream(ctx context.Context, path string, opts Options, emit func(string) error) error {
	if opts.Poll <= 0 {
		opts.Poll = defaultPoll
	}
	keep := func(line string) bool {
		return opts.Match == "" || strings.Contains(line, opts.Match)
	}

	lines, offset, err := lastLines(path, opts.Lines, keep)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if err := emit(line); err != nil {
			return err
		}
	}
	if !opts.Follow {
		return nil
	}

	current, _ := os.Stat(path)
	ticker := time.NewTicker(opts.Poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat log file: %w", err)
		}
		if current == nil || !os.SameFile(current, info) || info.Size() < offset {
			current = info
			offset = 0
		}

		fresh, next, err := readFrom(path, offset)
		if err != nil {
			return err
		}
		offset = next
		for _, line := range fresh {
			if !keep(line) {
				continue
			}
			if err := emit(line); err != nil {
				return err
			}
		}
	}
}

// lastLines returns up to limit kept lines from the end of path and the
// offset just past them. A missing file yields no lines.
func lastLines(path string, limit int, keep func(string) bool) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		offset, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, offset, nil
	}

	ring := make([]string, limit)
	count, idx := 0, 0
	scanner := newScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if !keep(line) {
			continue
		}
		ring[idx] = line
		idx = (idx + 1) % limit
		count = min(count+1, limit)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	offset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log offset: %w", err)
	}

	lines := make([]string, 0, count)
	start := 0
	if count == limit {
		start = idx
	}
	for i := 0; i < count; i++ {
		lines = append(lines, ring[(start+i)%limit])
	}
	return lines, offset, nil
}

// readFrom returns complete lines written after offset. A trailing partial
// line is left for the next call.
func readFrom(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, offset, nil
		}
		return nil, offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	var lines []string
	for {
		chunk, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return lines, offset, nil
		}
		if err != nil {
			return lines, offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(chunk))
		lines = append(lines, strings.TrimRight(chunk, "\r\n"))
	}
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return scanner
}
