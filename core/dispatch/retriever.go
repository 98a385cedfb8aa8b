package dispatch

import (
	"fmt"
	"sort"
)

// RetrieverID is one of the retriever kinds the dispatcher may hire.
type RetrieverID string

const (
	R01    RetrieverID = "R-01"
	R02    RetrieverID = "R-02"
	R03    RetrieverID = "R-03"
	AceR01 RetrieverID = "ACE R-01"
	AceR02 RetrieverID = "ACE R-02"
)

// retrievers is the hiring whitelist. It is never modified.
var retrievers = [...]RetrieverID{R01, R02, R03, AceR01, AceR02}

// KnownRetrievers returns the whitelisted retriever ids in display order.
func KnownRetrievers() []RetrieverID {
	out := make([]RetrieverID, len(retrievers))
	copy(out, retrievers[:])
	return out
}

// LookupRetriever maps a display name to its id. Names are matched exactly.
func LookupRetriever(name string) (RetrieverID, bool) {
	for _, id := range retrievers {
		if string(id) == name {
			return id, true
		}
	}
	return "", false
}

const (
	MinPriority = -10
	MaxPriority = 99
	// FallbackPriority ranks candidates whose priority cannot be resolved.
	FallbackPriority = 100
)

// Preference is the user setting for one retriever.
type Preference struct {
	Enabled  bool `json:"enabled" yaml:"enabled"`
	Priority int  `json:"priority" yaml:"priority"`
}

// Preferences maps retriever ids to user settings. Lower priority values are
// hired first.
type Preferences map[RetrieverID]Preference

// DefaultPreferences returns the out-of-the-box settings: credit retrievers
// R-01 and R-02 enabled, everything else off.
func DefaultPreferences() Preferences {
	return Preferences{
		R01:    {Enabled: true, Priority: 1},
		R02:    {Enabled: true, Priority: 2},
		R03:    {Enabled: false, Priority: 3},
		AceR01: {Enabled: false, Priority: 4},
		AceR02: {Enabled: false, Priority: 5},
	}
}

// Enabled reports whether the named retriever may be hired. Names outside the
// whitelist and ids without an entry are disabled.
func (p Preferences) Enabled(name string) bool {
	id, ok := LookupRetriever(name)
	if !ok {
		return false
	}
	pref, ok := p[id]
	return ok && pref.Enabled
}

// Priority returns the configured priority or FallbackPriority when the name
// cannot be resolved.
func (p Preferences) Priority(name string) int {
	id, ok := LookupRetriever(name)
	if !ok {
		return FallbackPriority
	}
	pref, ok := p[id]
	if !ok {
		return FallbackPriority
	}
	return pref.Priority
}

// Clone returns an independent copy.
func (p Preferences) Clone() Preferences {
	if p == nil {
		return nil
	}
	cp := make(Preferences, len(p))
	for k, v := range p {
		cp[k] = v
	}
	return cp
}

// Validate checks that every entry is whitelisted and within priority bounds.
func (p Preferences) Validate() error {
	ids := make([]string, 0, len(p))
	for id := range p {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	for _, name := range ids {
		id, ok := LookupRetriever(name)
		if !ok {
			return fmt.Errorf("unknown retriever %q", name)
		}
		if pr := p[id].Priority; pr < MinPriority || pr > MaxPriority {
			return fmt.Errorf("retriever %s: priority %d out of range [%d, %d]", name, pr, MinPriority, MaxPriority)
		}
	}
	return nil
}
