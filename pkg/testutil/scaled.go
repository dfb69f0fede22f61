package testutil

import (
	"os"
	"strconv"
	"sync"
	"time"

	"src.swiftkernel.dev/pkg/env"
)

// Scaled returns d multiplied by $SWIFT_KERNEL_TEST_TIME_SCALE, for timeouts
// that slow machines need to stretch. The variable is read once.
func Scaled(d time.Duration) time.Duration {
	return time.Duration(float64(d) * timeScale())
}

var timeScale = sync.OnceValue(func() float64 {
	return parseScale(os.Getenv(env.SWIFT_KERNEL_TEST_TIME_SCALE))
})

// A missing, malformed or non-positive scale counts as 1.
func parseScale(s string) float64 {
	if scale, err := strconv.ParseFloat(s, 64); err == nil && scale > 0 {
		return scale
	}
	return 1
}
