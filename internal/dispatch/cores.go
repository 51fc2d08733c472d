package dispatch

import (
	"runtime"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.uber.org/zap"
)

// MaxCores asks ParseCores for every core but one.
const MaxCores = -1

// AvailableCores reports the logical CPUs of the host, falling back to the
// Go runtime when the platform query fails.
func AvailableCores() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		n = runtime.NumCPU()
	}
	return n
}

// PoolAvailable reports whether a worker pool can run jobs in parallel on
// this host.
func PoolAvailable() bool {
	return AvailableCores() > 1 && runtime.GOMAXPROCS(0) > 1
}

// ParseCores validates a requested core count. The result lies in
// [1, available-1] (at least 1); -1 selects the maximum. Anything that is not
// a single integer falls back to 1 with a warning.
func ParseCores(raw string, available int, logger *zap.Logger) int {
	if logger == nil {
		logger = zap.NewNop()
	}
	ceiling := available - 1
	if ceiling < 1 {
		ceiling = 1
	}

	fields := strings.Fields(strings.ReplaceAll(raw, ",", " "))
	if len(fields) != 1 {
		logger.Warn("core count must be a single integer, using 1", zap.String("cores", raw))
		return 1
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		logger.Warn("core count is not numeric, using 1", zap.String("cores", raw))
		return 1
	}
	switch {
	case n == MaxCores:
		return ceiling
	case n < 1:
		logger.Warn("core count below 1, using 1", zap.Int("cores", n))
		return 1
	case n > ceiling:
		logger.Info("core count clamped", zap.Int("requested", n), zap.Int("cores", ceiling))
		return ceiling
	}
	return n
}
