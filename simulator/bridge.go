package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/retrieverd/core/dispatch"
	"github.com/kilianp07/retrieverd/core/model"
	"github.com/kilianp07/retrieverd/infra/logger"
	"github.com/kilianp07/retrieverd/infra/mqtt"
)

// AckStrategy decides whether and when a command is acknowledged.
type AckStrategy interface {
	// Ack calls send once the acknowledgment should go out. It returns false
	// when the command is dropped.
	Ack(ctx context.Context, send func()) bool
}

// AutoAck sends an ACK after an optional fixed delay.
type AutoAck struct {
	Delay time.Duration
}

// Ack implements AckStrategy.
func (a AutoAck) Ack(ctx context.Context, send func()) bool {
	if !sleep(ctx, a.Delay) {
		return false
	}
	send()
	return true
}

// RandomAck drops commands with the configured probability and
// waits for the specified delay before acknowledging the rest.
type RandomAck struct {
	Delay    time.Duration
	DropRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomAck seeds a RandomAck.
func NewRandomAck(delay time.Duration, dropRate float64, seed int64) *RandomAck {
	return &RandomAck{Delay: delay, DropRate: dropRate, rng: rand.New(rand.NewSource(seed))}
}

// Ack implements AckStrategy.
func (r *RandomAck) Ack(ctx context.Context, send func()) bool {
	r.mu.Lock()
	drop := r.DropRate > 0 && r.rng.Float64() < r.DropRate
	r.mu.Unlock()
	if drop {
		return false
	}
	if !sleep(ctx, r.Delay) {
		return false
	}
	send()
	return true
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// NewBridgeClient connects a paho client for the bridge.
func NewBridgeClient(broker, clientID string) (paho.Client, error) {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.AutoReconnect = true
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return cli, nil
}

// Bridge exposes a Game over MQTT the way the game client plugin does:
// state snapshots on the state topic, commands in, acks out.
type Bridge struct {
	game   *Game
	cli    paho.Client
	cfg    mqtt.Config
	ack    AckStrategy
	logger logger.Logger
	ctx    context.Context
}

// NewBridge wires game to cli using the topics of cfg.
func NewBridge(game *Game, cli paho.Client, cfg mqtt.Config, ack AckStrategy) *Bridge {
	cfg.SetDefaults()
	if ack == nil {
		ack = AutoAck{}
	}
	return &Bridge{game: game, cli: cli, cfg: cfg, ack: ack, logger: logger.New("sim_bridge"), ctx: context.Background()}
}

// Run subscribes to commands and publishes state every interval until ctx
// is canceled.
func (b *Bridge) Run(ctx context.Context, interval time.Duration) error {
	b.ctx = ctx
	if token := b.cli.Subscribe(b.cfg.CommandTopic, b.cfg.QoS["command"], b.handleCommand); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", b.cfg.CommandTopic, token.Error())
	}
	defer b.cli.Unsubscribe(b.cfg.CommandTopic)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := b.PublishState(); err != nil {
			b.logger.Errorf("publish state: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// PublishState sends the current game state.
func (b *Bridge) PublishState() error {
	snap, err := dispatch.APISource{API: b.game}.Snapshot(b.ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	token := b.cli.Publish(b.cfg.StateTopic, b.cfg.QoS["state"], false, payload)
	token.Wait()
	return token.Error()
}

func (b *Bridge) handleCommand(_ paho.Client, msg paho.Message) {
	var cmd mqtt.Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		b.logger.Errorf("decode command: %v", err)
		return
	}
	go b.ack.Ack(b.ctx, func() {
		ack := mqtt.Ack{CommandID: cmd.CommandID, OK: true}
		if err := b.apply(cmd); err != nil {
			ack.OK = false
			ack.Error = err.Error()
		}
		payload, err := json.Marshal(ack)
		if err != nil {
			b.logger.Errorf("marshal ack: %v", err)
			return
		}
		token := b.cli.Publish(b.cfg.AckTopic, b.cfg.QoS["ack"], false, payload)
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warnf("ack publish timeout for %s", cmd.CommandID)
			return
		}
		if err := token.Error(); err != nil {
			b.logger.Errorf("publish ack error for %s: %v", cmd.CommandID, err)
		}
	})
}

func (b *Bridge) apply(cmd mqtt.Command) error {
	switch cmd.Action {
	case mqtt.ActionCollect:
		if cmd.Slot == nil {
			return fmt.Errorf("collect without slot")
		}
		return b.game.Collect(*cmd.Slot)
	case mqtt.ActionSelect:
		return b.game.OverrideSelection(model.Candidate{Name: cmd.Retriever})
	case mqtt.ActionHire:
		return b.game.Hire()
	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
}
