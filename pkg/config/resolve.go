package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Scheduler variables consulted by ResolveCores, in order.
const (
	envSlurmCPUsOnNode     = "SLURM_CPUS_ON_NODE"
	envSlurmJobCPUsPerNode = "SLURM_JOB_CPUS_PER_NODE"
)

// defaultThresholdBP backs an empty threshold_bp.
const defaultThresholdBP = 50_000

// Cores is the outcome of ResolveCores.
type Cores struct {
	// Workers is the worker count to use.
	Workers int
	// Available is the core count granted by the scheduler or the machine.
	Available int
	// Capped reports that the request exceeded Available.
	Capped bool
}

// ResolveCores picks the worker count for a run. A SLURM allocation bounds
// the available cores; requested 0 means all of them. lookup reads the
// environment and may be nil.
func ResolveCores(requested int, lookup func(string) (string, bool)) Cores {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	avail := availableCores(lookup)

	if requested <= 0 {
		return Cores{Workers: avail, Available: avail}
	}

	if requested > avail {
		return Cores{Workers: avail, Available: avail, Capped: true}
	}

	return Cores{Workers: requested, Available: avail}
}

func availableCores(lookup func(string) (string, bool)) int {
	if v, ok := lookup(envSlurmCPUsOnNode); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil && n > 0 {
			return n
		}

		return runtime.NumCPU()
	}

	// SLURM_JOB_CPUS_PER_NODE looks like "16(x2)" or "8".
	if v, ok := lookup(envSlurmJobCPUsPerNode); ok {
		head, _, _ := strings.Cut(v, "(")
		head, _, _ = strings.Cut(head, "x")

		n, err := strconv.Atoi(strings.TrimSpace(head))
		if err == nil && n > 0 {
			return n
		}
	}

	return runtime.NumCPU()
}

// ParseThresholdBP parses a base pair count given as a plain number or a
// human size ("50kb", "1M"). Suffixes are decimal. Empty means 50000.
func ParseThresholdBP(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultThresholdBP, nil
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidThresholdBP, s)
	}

	return n, nil
}
