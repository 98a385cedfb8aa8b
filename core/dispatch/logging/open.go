package logging

import "fmt"

// Options selects and configures a LogStore backend.
type Options struct {
	// Backend is "jsonl", "sqlite" or "none".
	Backend    string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Open builds the store described by opts. The "none" backend returns a nil
// store and no error. A jsonl store rotates when MaxSizeMB is positive.
func Open(opts Options) (LogStore, error) {
	switch opts.Backend {
	case "none":
		return nil, nil
	case "jsonl":
		if opts.MaxSizeMB > 0 {
			return NewRotatingJSONLStore(opts.Path, opts.MaxSizeMB, opts.MaxBackups, opts.MaxAgeDays)
		}
		return NewJSONLStore(opts.Path)
	case "sqlite":
		return NewSQLiteStore(opts.Path)
	default:
		return nil, fmt.Errorf("unknown log backend %q", opts.Backend)
	}
}
