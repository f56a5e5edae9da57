package providers

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/logs2metrics/l2m/internal/domain/engine"
)

// FormatBytes renders a byte count the way the engine's cat API does
func FormatBytes(n int64) string {
	if n > -1024 && n < 1024 {
		return fmt.Sprintf("%db", n)
	}
	v := float64(n)
	for _, unit := range []string{"kb", "mb", "gb", "tb"} {
		v /= 1024
		if v > -1024 && v < 1024 {
			return fmt.Sprintf("%.1f%s", v, unit)
		}
	}
	return fmt.Sprintf("%.1fpb", v/1024)
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	default:
		return 0
	}
}

func sortFields(fields []engine.FieldMapping) {
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
}
