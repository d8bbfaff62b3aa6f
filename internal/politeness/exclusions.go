package politeness

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jonesrussell/crawlfrontier/internal/index"
)

// LoadExclusions reads a newline-delimited exclusion file, skipping blank
// lines and lines starting with "#" (spec.md section 6: "Exclusion file").
func LoadExclusions(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("politeness: open exclusion file: %w", err)
	}
	defer f.Close()

	var domains []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, strings.ToLower(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("politeness: read exclusion file: %w", err)
	}
	return domains, nil
}

// ApplyExclusions marks every domain in domains as excluded in the Shared
// Index and removes it from the ready queue if already present (spec.md
// section 4.3: "each domain is marked is_excluded = true in the index";
// section 8 invariant 3: excluded domains never appear in domains:ready).
func ApplyExclusions(ctx context.Context, idx *index.Index, domains []string) error {
	excluded := true
	for _, d := range domains {
		if err := idx.SetDomainMeta(ctx, d, index.DomainMetaFields{IsExcluded: &excluded}); err != nil {
			return fmt.Errorf("politeness: exclude %s: %w", d, err)
		}
		if err := idx.RemoveFromReady(ctx, d); err != nil {
			return fmt.Errorf("politeness: remove %s from ready: %w", d, err)
		}
	}
	return nil
}
