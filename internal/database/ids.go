package database

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// FormatIdentityID formats the n-th identity id, e.g. 7 -> EMP007.
func FormatIdentityID(n int) string {
	return fmt.Sprintf("%s%0*d", constants.IdentityPrefix, constants.IdentityDigits, n)
}

// ParseIdentityNumber extracts the numeric suffix of a generated identity id.
func ParseIdentityNumber(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, constants.IdentityPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// NextIdentityNumber returns max numeric suffix + 1 over ids with the identity
// prefix, or 1 when there are none.
func NextIdentityNumber(ids []string) int {
	highest := 0
	for _, id := range ids {
		if n, ok := ParseIdentityNumber(id); ok && n > highest {
			highest = n
		}
	}
	return highest + 1
}
