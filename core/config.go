package core

import "os"

// Config mirrors the environment variables spec.md §6 says the engine
// recognizes. It is read once via ConfigFromEnv, the way the teacher's
// runtime.DefaultEngineOptions centralizes its tunables into one struct
// instead of scattering os.Getenv calls through the codebase.
type Config struct {
	// PrintLayouts records AG_PRINT_LAYOUTS. No package reads it; built
	// value-layout descriptors are never dumped.
	PrintLayouts bool
	// AsyncLayouts records AG_ASYNC_LAYOUTS; defaults to on, matching
	// spec.md §6. No package reads it; layouts are built synchronously on
	// first compare whatever its value.
	AsyncLayouts bool
	// UnmapReusable makes the arena aggressively return freed pages to the
	// OS via the virtual-memory provider's advisory call (AG_UNMAP_REUSABLE).
	UnmapReusable bool
	// PrefetchLayouts records AG_PREFETCH_LAYOUTS. No package reads it; a
	// type's value layout is always built lazily on first compare.
	PrefetchLayouts bool
	// Tree records AG_TREE. No package reads it; subgraph tree annotation
	// (Subgraph.BeginTreeElement and friends) works whatever its value.
	Tree bool
}

// DefaultConfig matches spec.md §6's stated defaults: async layout building on,
// everything else off.
func DefaultConfig() Config {
	return Config{AsyncLayouts: true}
}

// ConfigFromEnv reads the AG_* environment variables into a Config, starting
// from DefaultConfig so an unset variable keeps its documented default.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v, ok := boolEnv("AG_PRINT_LAYOUTS"); ok {
		cfg.PrintLayouts = v
	}
	if v, ok := boolEnv("AG_ASYNC_LAYOUTS"); ok {
		cfg.AsyncLayouts = v
	}
	if v, ok := boolEnv("AG_UNMAP_REUSABLE"); ok {
		cfg.UnmapReusable = v
	}
	if v, ok := boolEnv("AG_PREFETCH_LAYOUTS"); ok {
		cfg.PrefetchLayouts = v
	}
	if v, ok := boolEnv("AG_TREE"); ok {
		cfg.Tree = v
	}
	return cfg
}

// boolEnv reports a variable's truthiness the way most of these flags are
// checked in practice: unset or empty is false/unset, "0" or "false" is
// false, anything else present is true.
func boolEnv(name string) (value bool, present bool) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return false, false
	}
	switch raw {
	case "0", "false", "FALSE", "False":
		return false, true
	default:
		return true, true
	}
}
