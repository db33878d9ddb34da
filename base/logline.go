package base

import (
	"bytes"
)

// LogLine is one complete line read from a source file, including its trailing newline
type LogLine []byte

// String returns the line content without the trailing newline
func (ln LogLine) String() string {
	return string(bytes.TrimSuffix(ln, []byte{'\n'}))
}

// LogBatch is an ordered group of lines handed to transport as one send unit
type LogBatch []LogLine

// NumBytes returns the total length of all lines in the batch
func (batch LogBatch) NumBytes() int {
	total := 0
	for _, ln := range batch {
		total += len(ln)
	}
	return total
}
