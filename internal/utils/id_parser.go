// Package utils provides helpers for parsing record IDs and paths from user input.
package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hourbook/hourbook/internal/types"
)

// maxRangeSpan bounds a single "a-b" range so a typo cannot expand to millions of IDs
const maxRangeSpan = 10000

// ParseID parses a positive record ID. A leading "#" is accepted ("#42" -> 42).
func ParseID(input string) (int64, error) {
	s := strings.TrimPrefix(strings.TrimSpace(input), "#")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: %w", input, types.ErrValidation)
	}
	return id, nil
}

// ParseIDList parses IDs given as separate args, comma lists or inclusive ranges:
//
//	"3" "5,7" "10-12" -> [3 5 7 10 11 12]
//
// Order is preserved; duplicates are kept for the caller to reject or collapse.
func ParseIDList(args []string) ([]int64, error) {
	var ids []int64
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			lo, hi, isRange := strings.Cut(part, "-")
			if !isRange {
				id, err := ParseID(part)
				if err != nil {
					return nil, err
				}
				ids = append(ids, id)
				continue
			}
			start, err := ParseID(lo)
			if err != nil {
				return nil, err
			}
			end, err := ParseID(hi)
			if err != nil {
				return nil, err
			}
			if end < start {
				return nil, fmt.Errorf("invalid range %q: %w", part, types.ErrValidation)
			}
			if end-start >= maxRangeSpan {
				return nil, fmt.Errorf("range %q spans more than %d ids: %w", part, maxRangeSpan, types.ErrValidation)
			}
			for id := start; id <= end; id++ {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil, types.ErrEmptyEntrySet
	}
	return ids, nil
}
