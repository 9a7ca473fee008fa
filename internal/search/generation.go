package search

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// GenerationName derives a unique physical index name from the alias base.
// Names are lexically unrelated to the alias itself, so queries against the
// alias never match a generation by accident.
func GenerationName(base string, now time.Time) string {
	return base + "-" + strconv.FormatInt(now.UnixNano(), 10)
}

// GenerationTime extracts the creation timestamp encoded in a generation
// name. The second return is false when name is not a generation of base.
func GenerationTime(base, name string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(name, base+"-")
	if !ok {
		return time.Time{}, false
	}
	nanos, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || nanos < 0 {
		return time.Time{}, false
	}
	return time.Unix(0, nanos), true
}

// SortGenerations orders generation names newest first. Names that do not
// parse as generations of base sort last.
func SortGenerations(base string, names []string) {
	sort.Slice(names, func(i, j int) bool {
		ti, oki := GenerationTime(base, names[i])
		tj, okj := GenerationTime(base, names[j])
		if oki != okj {
			return oki
		}
		return ti.After(tj)
	})
}
