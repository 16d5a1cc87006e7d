// Package simlog parses and validates the supervisor logs written during
// a simulated match. Each zone's log is named log-zone-<zone>-match-<match>.txt
// and contains lines of the form "<index>| <message>".
package simlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/acarl005/stripansi"
	"github.com/pkg/errors"
)

// DefaultSuccessMarker is the message the supervisor prints as its final
// log line when a match completes cleanly.
const DefaultSuccessMarker = "Match complete"

// Line is one parsed supervisor log line.
type Line struct {
	Index   int
	Message string
}

var lineRe = regexp.MustCompile(`^(\d+)\| (.*)$`)

// FileName returns the supervisor log filename for a zone and match.
func FileName(zone, match int) string {
	return fmt.Sprintf("log-zone-%d-match-%d.txt", zone, match)
}

// Parse reads supervisor log lines from r. ANSI escape sequences are
// stripped before matching so colored simulator output parses cleanly.
// Blank lines are ignored; any other non-conforming line is an error.
func Parse(r io.Reader) ([]Line, error) {
	var lines []Line

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimRight(stripansi.Strip(scanner.Text()), "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}

		m := lineRe.FindStringSubmatch(raw)
		if m == nil {
			return nil, errors.Errorf("malformed log line %d: %q", lineNo, raw)
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, errors.Wrapf(err, "bad index on log line %d", lineNo)
		}
		lines = append(lines, Line{Index: idx, Message: m[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading log")
	}

	return lines, nil
}

// Validate checks that lines are indexed contiguously from zero and that
// the final message equals the success marker.
func Validate(lines []Line, marker string) error {
	if marker == "" {
		marker = DefaultSuccessMarker
	}
	if len(lines) == 0 {
		return errors.New("log is empty")
	}

	for i, line := range lines {
		if line.Index != i {
			return errors.Errorf("log index gap: expected %d, got %d", i, line.Index)
		}
	}

	last := lines[len(lines)-1]
	if last.Message != marker {
		return errors.Errorf("last log line is %q, expected success marker %q", last.Message, marker)
	}
	return nil
}

// CheckFile parses and validates a supervisor log file in one step.
func CheckFile(path, marker string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening log file")
	}
	defer f.Close()

	lines, err := Parse(f)
	if err != nil {
		return err
	}
	return Validate(lines, marker)
}
