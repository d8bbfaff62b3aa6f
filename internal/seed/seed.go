// Package seed loads the seed file that bootstraps a crawl (spec.md
// section 6: "Seed file: newline-separated URLs or bare domains. Bare
// domains are expanded to http://{domain}/ before insertion."). Grounded
// on politeness.LoadExclusions' newline-delimited-file scanning shape,
// reused here for the seed file's own line format.
package seed

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Load reads a newline-delimited seed file, skipping blank lines, and
// expands bare domains (anything without a "://") to "http://{domain}/".
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seed: open seed file: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, expand(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("seed: read seed file: %w", err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("seed: %s contains no seeds", path)
	}
	return urls, nil
}

// expand turns a bare domain into a fetchable URL, leaving anything that
// already carries a scheme untouched.
func expand(line string) string {
	if strings.Contains(line, "://") {
		return line
	}
	return "http://" + line + "/"
}
