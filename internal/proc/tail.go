package proc

import (
	"io"
	"os"
)

// ReadTail returns up to maxBytes from the end of a log plus the file size.
// Readers open log files independently; the supervisor keeps the writers.
func ReadTail(path string, maxBytes int) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", 0, err
	}
	size := info.Size()

	start := size - int64(maxBytes)
	if start < 0 {
		start = 0
	}
	if _, err := file.Seek(start, io.SeekStart); err != nil {
		return "", 0, err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return "", 0, err
	}
	return string(data), size, nil
}

// ReadFrom returns up to maxBytes starting at offset and the new offset.
// Tailing readers call this repeatedly; offsets only ever grow.
func ReadFrom(path string, offset int64, maxBytes int) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", offset, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", offset, err
	}
	size := info.Size()
	if offset >= size {
		return "", offset, nil
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return "", offset, err
	}
	limit := size - offset
	if limit > int64(maxBytes) {
		limit = int64(maxBytes)
	}
	buf := make([]byte, limit)
	n, err := io.ReadFull(file, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", offset, err
	}
	return string(buf[:n]), offset + int64(n), nil
}
