package rfc9111

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// §  1.2.2. Delta Seconds
// §
// §  The delta-seconds rule specifies a non-negative integer, representing time
// §  in seconds.
// §
// §      delta-seconds  = 1*DIGIT
// §
// §  A recipient parsing a delta-seconds value and converting it to binary form
// §  ought to use an arithmetic type of at least 31 bits of non-negative integer
// §  range. If a cache receives a delta-seconds value greater than the greatest
// §  integer it can represent, or if any of its subsequent calculations overflows,
// §  the cache MUST consider the value to be 2147483648 (231) or the greatest
// §  positive integer it can conveniently represent.
func deltaSeconds(secondsStr string) (time.Duration, error) {
	seconds, err := strconv.ParseUint(secondsStr, 10, 31)
	if errors.Is(err, strconv.ErrRange) {
		return maxDeltaSeconds, nil
	}
	if err != nil {
		return 0, fmt.Errorf("invalid delta-seconds %q: %w", secondsStr, err)
	}
	return time.Second * time.Duration(seconds), nil
}

const maxDeltaSeconds = 2147483648 * time.Second
