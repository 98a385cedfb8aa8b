package simulator

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/retrieverd/core/model"
)

var (
	ErrNoSelection  = errors.New("no retriever selected")
	ErrNoFreeSlot   = errors.New("no free slot")
	ErrInsufficient = errors.New("insufficient balance")
	ErrNotFinished  = errors.New("retriever still running")
	ErrBadSlot      = errors.New("no retriever in slot")
	ErrNotOffered   = errors.New("retriever not offered")
)

type running struct {
	kind      KindConfig
	finishAt  time.Time
	collected bool
}

// Stats counts what happened in the game.
type Stats struct {
	Hires    map[string]int `json:"hires"`
	Collects int            `json:"collects"`
	Credits  float64        `json:"credits"`
	Uridium  float64        `json:"uridium"`
	Running  int            `json:"running"`
}

// Game is an in-process stand-in for the game client. It exposes the host
// read API and accepts the same UI actions as the real client.
//
// Collected slots keep their index until the next read so that a batch of
// collects within one tick refers to the snapshot it was computed from.
type Game struct {
	mu       sync.Mutex
	cfg      Config
	now      func() time.Time
	slots    int
	running  []running
	balances model.Balances
	selected *KindConfig
	hires    map[string]int
	collects int
}

// New creates a game from cfg. now defaults to time.Now.
func New(cfg Config, now func() time.Time) (*Game, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Game{
		cfg:   cfg,
		now:   now,
		slots: cfg.Slots,
		balances: model.Balances{
			model.ResourceCredits: cfg.Credits,
			model.ResourceUridium: cfg.Uridium,
		},
		hires: make(map[string]int),
	}, nil
}

// compact drops collected entries. Callers hold g.mu.
func (g *Game) compact() {
	kept := g.running[:0]
	for _, r := range g.running {
		if !r.collected {
			kept = append(kept, r)
		}
	}
	g.running = kept
}

func (g *Game) active() int {
	n := 0
	for _, r := range g.running {
		if !r.collected {
			n++
		}
	}
	return n
}

// AvailableSlots returns the number of idle slots.
func (g *Game) AvailableSlots() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.compact()
	return g.slots - len(g.running)
}

// InProgressRetrievers lists running retrievers in slot order.
func (g *Game) InProgressRetrievers() []model.InProgress {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.compact()
	now := g.now()
	out := make([]model.InProgress, 0, len(g.running))
	for _, r := range g.running {
		out = append(out, model.InProgress{Name: r.kind.Name, RemainingSeconds: r.finishAt.Sub(now).Seconds()})
	}
	return out
}

// AvailableRetrievers lists the catalog in display order.
func (g *Game) AvailableRetrievers() []model.Candidate {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]model.Candidate, 0, len(g.cfg.Catalog))
	for _, k := range g.cfg.Catalog {
		out = append(out, model.Candidate{Name: k.Name, Costs: append([]model.Cost(nil), k.Costs...)})
	}
	return out
}

func (g *Game) TotalCredits() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[model.ResourceCredits]
}

func (g *Game) TotalUridium() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[model.ResourceUridium]
}

// Collect claims the reward of a finished retriever.
func (g *Game) Collect(slot int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if slot < 0 || slot >= len(g.running) || g.running[slot].collected {
		return fmt.Errorf("%w %d", ErrBadSlot, slot)
	}
	r := &g.running[slot]
	if g.now().Before(r.finishAt) {
		return fmt.Errorf("%w: %s in slot %d", ErrNotFinished, r.kind.Name, slot)
	}
	for _, c := range r.kind.Reward {
		res, _ := model.ParseResource(c.ResourceID)
		g.balances[res] += float64(c.Amount)
	}
	r.collected = true
	g.collects++
	return nil
}

// OverrideSelection selects a catalog entry in the hire dialog.
func (g *Game) OverrideSelection(c model.Candidate) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.cfg.Catalog {
		if g.cfg.Catalog[i].Name == c.Name {
			k := g.cfg.Catalog[i]
			g.selected = &k
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotOffered, c.Name)
}

// Hire starts the selected retriever and pays its cost.
func (g *Game) Hire() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.selected == nil {
		return ErrNoSelection
	}
	if g.active() >= g.slots {
		return ErrNoFreeSlot
	}
	k := *g.selected
	for _, c := range k.Costs {
		res, _ := model.ParseResource(c.ResourceID)
		if g.balances[res] < float64(c.Amount) {
			return fmt.Errorf("%w: %s needs %d %s", ErrInsufficient, k.Name, c.Amount, res)
		}
	}
	for _, c := range k.Costs {
		res, _ := model.ParseResource(c.ResourceID)
		g.balances[res] -= float64(c.Amount)
	}
	g.compact()
	g.running = append(g.running, running{kind: k, finishAt: g.now().Add(k.Duration())})
	g.hires[k.Name]++
	g.selected = nil
	return nil
}

// Stats returns a copy of the game counters.
func (g *Game) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	hires := make(map[string]int, len(g.hires))
	for k, v := range g.hires {
		hires[k] = v
	}
	return Stats{
		Hires:    hires,
		Collects: g.collects,
		Credits:  g.balances[model.ResourceCredits],
		Uridium:  g.balances[model.ResourceUridium],
		Running:  g.active(),
	}
}

// HiredKinds returns the names hired at least once, sorted.
func (s Stats) HiredKinds() []string {
	out := make([]string, 0, len(s.Hires))
	for k := range s.Hires {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
