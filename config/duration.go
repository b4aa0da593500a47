// config/duration.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
)

var errNonPositive = errors.New("duration must be > 0")

// parseDurationFlexible reads a timeout from config. Strings take Go
// duration syntax ("90s", "1h30m") or plain seconds ("120"); numbers are
// seconds. Empty or untyped values yield def without error; invalid or
// non-positive values yield def and an error.
func parseDurationFlexible(raw any, def time.Duration) (time.Duration, error) {
	var d time.Duration
	switch t := raw.(type) {
	case nil, bool:
		return def, nil
	case time.Duration:
		d = t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return def, nil
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			secs, nerr := cast.ToFloat64E(s)
			if nerr != nil {
				return def, fmt.Errorf("cannot parse duration %q", s)
			}
			parsed = time.Duration(secs * float64(time.Second))
		}
		d = parsed
	default:
		secs, err := cast.ToFloat64E(t)
		if err != nil {
			return def, nil
		}
		d = time.Duration(secs * float64(time.Second))
	}
	if d <= 0 {
		return def, errNonPositive
	}
	return d, nil
}
