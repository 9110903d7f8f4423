package internal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var uPassword = regexp.MustCompile(`([^:]+):([^@]+)@`)

// RemovePassword replaces the password part of an address with "****" so the
// address can be logged safely.
func RemovePassword(uri string) string {
	return uPassword.ReplaceAllString(uri, "$1:****@")
}

func StringContains(s []string, k string) bool {
	for _, v := range s {
		if v == k {
			return true
		}
	}
	return false
}

// FormatBytes renders a byte count in a human readable form.
func FormatBytes(n uint64) string {
	if n < 1024 {
		return fmt.Sprintf("%d Bytes", n)
	}
	units := []string{"K", "M", "G", "T", "P", "E"}
	m := n
	i := 0
	for ; i < len(units)-1 && m >= 1<<20; i++ {
		m = m >> 10
	}
	return fmt.Sprintf("%.2f %siB (%d Bytes)", float64(m)/1024.0, units[i], n)
}

// ParseBytes parses a size with an optional suffix.
// Valid suffixes: B, KB, MB, GB (powers of 1000), KiB, MiB, GiB (powers of 1024).
// A bare number is taken as bytes.
func ParseBytes(s string) (uint64, error) {
	str := strings.TrimSpace(s)
	unit := uint64(1)
	suffixes := []struct {
		name string
		mult uint64
	}{
		{"KiB", 1 << 10}, {"MiB", 1 << 20}, {"GiB", 1 << 30},
		{"KB", 1000}, {"MB", 1000 * 1000}, {"GB", 1000 * 1000 * 1000},
		{"B", 1},
	}
	for _, suf := range suffixes {
		if strings.HasSuffix(str, suf.name) {
			unit = suf.mult
			str = strings.TrimSuffix(str, suf.name)
			break
		}
	}
	v, err := strconv.ParseUint(strings.TrimSpace(str), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return v * unit, nil
}
