package file

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ReadList reads a court list: one id per line, in file order. Blank lines
// are skipped and '#' starts a comment, either on its own line or after an
// id ("ca9 # Ninth Circuit").
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "read list")
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.ContainsAny(line, " \t,") {
			return nil, errors.Errorf("%s:%d: want one id per line, got %q", path, n, line)
		}
		out = append(out, line)
	}
	return out, errors.Wrapf(sc.Err(), "read list %s", path)
}
