package runner

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/R167/mdnsamp/checkers/common"
)

// ParseTargets reads one target per line. Blank lines and lines starting with
// '#' are ignored. For CSV input only the first column is used, and a leading
// "IP" header row is skipped.
func ParseTargets(r io.Reader, defaultPort uint16) ([]common.Target, error) {
	var targets []common.Target

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		field, _, _ := strings.Cut(line, ",")
		field = strings.Trim(strings.TrimSpace(field), `"`)
		if field == "" || strings.EqualFold(field, "ip") {
			continue
		}

		t, err := common.ParseTarget(field, defaultPort)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: invalid target %q", lineNo, field)
		}
		targets = append(targets, t)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read targets")
	}
	return targets, nil
}

// LoadTargets reads targets from path; "-" reads standard input.
func LoadTargets(path string, defaultPort uint16) ([]common.Target, error) {
	if path == "-" {
		return ParseTargets(os.Stdin, defaultPort)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open target list %s", path)
	}
	defer f.Close()

	return ParseTargets(f, defaultPort)
}
