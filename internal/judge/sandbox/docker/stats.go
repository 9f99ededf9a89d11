package docker

import (
	"fmt"
	"strconv"
	"strings"
)

// parseMemUsageMB parses the docker stats MemUsage column, formatted as
// "<used> / <limit>", e.g. "1.5MiB / 128MiB". Only the used side matters.
func parseMemUsageMB(s string) (int, error) {
	used, _, ok := strings.Cut(s, "/")
	if !ok {
		return 0, fmt.Errorf("malformed mem usage %q", s)
	}
	used = strings.TrimSpace(used)

	for _, unit := range []struct {
		suffix string
		toMB   float64
	}{
		{"GiB", 1024},
		{"MiB", 1},
		{"KiB", 1.0 / 1024},
		{"B", 1.0 / (1024 * 1024)},
	} {
		if !strings.HasSuffix(used, unit.suffix) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(used, unit.suffix)), 64)
		if err != nil {
			return 0, fmt.Errorf("malformed mem usage %q: %w", s, err)
		}
		return int(v * unit.toMB), nil
	}
	return 0, fmt.Errorf("unknown mem usage unit in %q", s)
}
