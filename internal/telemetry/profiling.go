package telemetry

import (
	"fmt"
	"runtime"
	"slices"

	"github.com/grafana/pyroscope-go"
)

// ProfilingConfig configures Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// Endpoint is the Pyroscope server URL, e.g. http://localhost:4040.
	Endpoint string

	// ProfileTypes lists the profiles to collect. See profileTypes for the
	// accepted names.
	ProfileTypes []string
}

var profileTypes = map[string]pyroscope.ProfileType{
	"cpu":            pyroscope.ProfileCPU,
	"alloc_objects":  pyroscope.ProfileAllocObjects,
	"alloc_space":    pyroscope.ProfileAllocSpace,
	"inuse_objects":  pyroscope.ProfileInuseObjects,
	"inuse_space":    pyroscope.ProfileInuseSpace,
	"goroutines":     pyroscope.ProfileGoroutines,
	"mutex_count":    pyroscope.ProfileMutexCount,
	"mutex_duration": pyroscope.ProfileMutexDuration,
	"block_count":    pyroscope.ProfileBlockCount,
	"block_duration": pyroscope.ProfileBlockDuration,
}

// runtime sampling rate applied when mutex or block profiles are requested
const contentionRate = 5

// InitProfiling starts the Pyroscope agent. The returned function stops it.
func InitProfiling(cfg ProfilingConfig) (func() error, error) {
	if !cfg.Enabled {
		return func() error { return nil }, nil
	}

	types, err := parseProfileTypes(cfg.ProfileTypes)
	if err != nil {
		return nil, err
	}
	if slices.Contains(types, pyroscope.ProfileMutexCount) || slices.Contains(types, pyroscope.ProfileMutexDuration) {
		runtime.SetMutexProfileFraction(contentionRate)
	}
	if slices.Contains(types, pyroscope.ProfileBlockCount) || slices.Contains(types, pyroscope.ProfileBlockDuration) {
		runtime.SetBlockProfileRate(contentionRate)
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ServiceName,
		ServerAddress:   cfg.Endpoint,
		Tags:            map[string]string{"version": cfg.ServiceVersion},
		ProfileTypes:    types,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}
	return profiler.Stop, nil
}

func parseProfileTypes(names []string) ([]pyroscope.ProfileType, error) {
	types := make([]pyroscope.ProfileType, 0, len(names))
	for _, name := range names {
		pt, ok := profileTypes[name]
		if !ok {
			return nil, fmt.Errorf("unknown profile type %q", name)
		}
		types = append(types, pt)
	}
	return types, nil
}
