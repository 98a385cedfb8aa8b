package dispatch

import (
	"sort"

	"github.com/kilianp07/retrieverd/core/model"
)

// Reason explains why a candidate was or was not eligible for hire.
type Reason string

const (
	ReasonEligible        Reason = "eligible"
	ReasonNotWhitelisted  Reason = "not_whitelisted"
	ReasonDisabled        Reason = "disabled"
	ReasonUnaffordable    Reason = "unaffordable"
	ReasonUnknownResource Reason = "unknown_resource"
)

// Evaluation is the verdict for a single candidate.
type Evaluation struct {
	Name     string `json:"name"`
	Reason   Reason `json:"reason"`
	Priority int    `json:"priority"`
}

// CollectCommand asks the host to collect the retriever in Slot.
type CollectCommand struct {
	Slot int    `json:"slot"`
	Name string `json:"name"`
}

// HireCommand asks the host to select Candidate and press hire.
type HireCommand struct {
	Candidate model.Candidate `json:"candidate"`
	Priority  int             `json:"priority"`
}

// Decision is the outcome of one tick.
type Decision struct {
	Collect     []CollectCommand `json:"collect"`
	Hire        *HireCommand     `json:"hire,omitempty"`
	FreeSlots   int              `json:"free_slots"`
	Evaluations []Evaluation     `json:"evaluations,omitempty"`
}

// ReapFinished returns a collect command for every finished retriever. Slots
// are the 0-based positions in the input.
func ReapFinished(inProgress []model.InProgress) []CollectCommand {
	var cmds []CollectCommand
	for i, r := range inProgress {
		if r.Finished() {
			cmds = append(cmds, CollectCommand{Slot: i, Name: r.Name})
		}
	}
	return cmds
}

// Evaluate classifies a candidate against the preferences and balances.
// Enablement is checked before affordability.
func Evaluate(c model.Candidate, prefs Preferences, balances model.Balances) Evaluation {
	ev := Evaluation{Name: c.Name, Priority: prefs.Priority(c.Name)}
	switch {
	case !isWhitelisted(c.Name):
		ev.Reason = ReasonNotWhitelisted
	case !prefs.Enabled(c.Name):
		ev.Reason = ReasonDisabled
	default:
		ev.Reason = affordability(c, balances)
	}
	return ev
}

// Affordable reports whether every cost line is covered by the balances.
// Unknown resource identifiers are never affordable.
func Affordable(c model.Candidate, balances model.Balances) bool {
	return affordability(c, balances) == ReasonEligible
}

func affordability(c model.Candidate, balances model.Balances) Reason {
	for _, cost := range c.Costs {
		have, ok := balances.Lookup(cost.ResourceID)
		if !ok {
			return ReasonUnknownResource
		}
		if have < float64(cost.Amount) {
			return ReasonUnaffordable
		}
	}
	return ReasonEligible
}

func isWhitelisted(name string) bool {
	_, ok := LookupRetriever(name)
	return ok
}

// SelectHire picks the enabled, affordable candidate with the lowest priority
// value. Ties go to the earliest candidate. Nothing is selected when no slot
// is free.
func SelectHire(candidates []model.Candidate, prefs Preferences, balances model.Balances, freeSlots int) (HireCommand, bool) {
	hire, _ := selectHire(candidates, prefs, balances, freeSlots)
	if hire == nil {
		return HireCommand{}, false
	}
	return *hire, true
}

func selectHire(candidates []model.Candidate, prefs Preferences, balances model.Balances, freeSlots int) (*HireCommand, []Evaluation) {
	if freeSlots <= 0 {
		return nil, nil
	}
	evals := make([]Evaluation, 0, len(candidates))
	var eligible []int
	for i, c := range candidates {
		ev := Evaluate(c, prefs, balances)
		evals = append(evals, ev)
		if ev.Reason == ReasonEligible {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		return nil, evals
	}
	sort.SliceStable(eligible, func(a, b int) bool {
		return evals[eligible[a]].Priority < evals[eligible[b]].Priority
	})
	head := eligible[0]
	return &HireCommand{Candidate: candidates[head], Priority: evals[head].Priority}, evals
}

// Decide runs the full selection for a snapshot. Collect commands do not free
// slots for the hire decision of the same tick.
func Decide(snap model.Snapshot, prefs Preferences) Decision {
	hire, evals := selectHire(snap.Available, prefs, snap.Balances, snap.FreeSlots)
	return Decision{
		Collect:     ReapFinished(snap.InProgress),
		Hire:        hire,
		FreeSlots:   snap.FreeSlots,
		Evaluations: evals,
	}
}
