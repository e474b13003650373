package util

import (
	"fmt"
	"strconv"
	"strings"
)

// MustParseUint returns 0 when s is not an unsigned integer.
func MustParseUint(s string) uint {
	id, _ := strconv.ParseUint(s, 10, 32)
	return uint(id)
}

// CheckPage defaults a missing page to 1 and rejects pages past MaxPage, whose
// offsets could overflow.
func CheckPage(page int) (int, error) {
	if page < 1 {
		return 1, nil
	}
	if page > MaxPage {
		return 0, Validation(fmt.Sprintf("page must be at most %d", MaxPage))
	}
	return page, nil
}

// PageParams clamps page/limit query values.
func PageParams(pageStr, limitStr string, defLimit, maxLimit int) (int, int) {
	page, err := strconv.Atoi(strings.TrimSpace(pageStr))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(strings.TrimSpace(limitStr))
	if err != nil || limit < 1 {
		limit = defLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

// SplitList splits a comma separated query value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
