// Package targets loads the email addresses a run submits.
package targets

import (
	"bufio"
	"log/slog"
	"os"
	"strings"
)

// Load reads one email address per line, trimming surrounding whitespace and
// dropping blank lines. Input order is preserved. A missing or unreadable
// file is logged and yields an empty list; the caller decides whether that
// aborts the run.
func Load(path string, log *slog.Logger) []string {
	f, err := os.Open(path)
	if err != nil {
		log.Error("email file not found", "path", path, "err", err)
		return nil
	}
	defer f.Close()

	var emails []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		emails = append(emails, line)
	}
	if err := sc.Err(); err != nil {
		log.Error("error reading email file", "path", path, "err", err)
	}

	log.Info("email addresses loaded", "count", len(emails))
	return emails
}
