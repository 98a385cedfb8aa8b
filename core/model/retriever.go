package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Resource identifies a player currency.
type Resource string

const (
	ResourceCredits Resource = "credits"
	ResourceUridium Resource = "uridium"
)

// ParseResource maps a loot identifier to a known resource. Matching is
// case-insensitive. Unknown identifiers return false.
func ParseResource(id string) (Resource, bool) {
	switch Resource(strings.ToLower(strings.TrimSpace(id))) {
	case ResourceCredits:
		return ResourceCredits, true
	case ResourceUridium:
		return ResourceUridium, true
	default:
		return "", false
	}
}

// Cost is one line item that must be paid to hire a retriever.
type Cost struct {
	ResourceID string `json:"resource_id" yaml:"resource_id"`
	Amount     int64  `json:"amount" yaml:"amount"`
}

// Candidate is a retriever offered for hire.
type Candidate struct {
	Name  string `json:"name" yaml:"name"`
	Costs []Cost `json:"costs" yaml:"costs"`
}

// InProgress is a retriever occupying a slot.
type InProgress struct {
	Name             string  `json:"name" yaml:"name"`
	RemainingSeconds float64 `json:"remaining_seconds" yaml:"remaining_seconds"`
}

// Finished reports whether the retriever can be collected.
func (r InProgress) Finished() bool { return r.RemainingSeconds <= 0 }

// Balances holds the player currency amounts.
type Balances map[Resource]float64

// Lookup resolves a raw loot identifier against the balances. The second
// value is false when the identifier is not a known resource.
func (b Balances) Lookup(id string) (float64, bool) {
	res, ok := ParseResource(id)
	if !ok {
		return 0, false
	}
	return b[res], true
}

// UnmarshalJSON folds resource keys through ParseResource. Unknown resources
// are dropped.
func (b *Balances) UnmarshalJSON(data []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return b.fold(raw)
}

// UnmarshalYAML folds resource keys like UnmarshalJSON.
func (b *Balances) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]float64
	if err := value.Decode(&raw); err != nil {
		return err
	}
	return b.fold(raw)
}

func (b *Balances) fold(raw map[string]float64) error {
	if raw == nil {
		*b = nil
		return nil
	}
	out := make(Balances, len(raw))
	for k, v := range raw {
		res, ok := ParseResource(k)
		if !ok {
			continue
		}
		if _, dup := out[res]; dup {
			return fmt.Errorf("balance %q given more than once", res)
		}
		out[res] = v
	}
	*b = out
	return nil
}
