package reference

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Line is one meaningful entry of an input list. Number is the 1-based line
// number in the file, kept for error reports.
type Line struct {
	Number int
	Text   string
}

// ReadList returns the entries of r in order, skipping blank lines and
// lines starting with '#'.
func ReadList(r io.Reader) ([]Line, error) {
	var lines []Line

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	number := 0
	for scanner.Scan() {
		number++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		lines = append(lines, Line{Number: number, Text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read input list")
	}

	return lines, nil
}

// ReadFile opens path and reads it with ReadList
func ReadFile(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open input file %s", path)
	}
	defer f.Close()

	return ReadList(f)
}
