package engine

import (
	"errors"
	"strconv"
	"strings"
)

// CompareVersions orders two dotted numeric versions and returns -1, 0 or 1.
// Missing or non-numeric components count as 0, so "1.2" == "1.2.0". An empty
// version on either side compares equal to anything.
func CompareVersions(v1, v2 string) int {
	v1, v2 = strings.TrimSpace(v1), strings.TrimSpace(v2)
	if v1 == "" || v2 == "" {
		return 0
	}
	a, b := versionParts(v1), versionParts(v2)
	n := max(len(a), len(b))
	for i := 0; i < n; i++ {
		x, y := partAt(a, i), partAt(b, i)
		switch {
		case x > y:
			return 1
		case x < y:
			return -1
		}
	}
	return 0
}

func versionParts(v string) []uint64 {
	raw := strings.Split(v, ".")
	out := make([]uint64, len(raw))
	for i, p := range raw {
		// out of range components saturate at MaxUint64
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			n = 0
		}
		out[i] = n
	}
	return out
}

func partAt(parts []uint64, i int) uint64 {
	if i < len(parts) {
		return parts[i]
	}
	return 0
}
