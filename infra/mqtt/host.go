package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/retrieverd/core/model"
	coremon "github.com/kilianp07/retrieverd/core/monitoring"
	"github.com/kilianp07/retrieverd/infra/logger"
)

// Actions carried by command messages.
const (
	ActionCollect = "collect"
	ActionSelect  = "select"
	ActionHire    = "hire"
)

// Command is published on the command topic.
type Command struct {
	CommandID string `json:"command_id"`
	Action    string `json:"action"`
	Slot      *int   `json:"slot,omitempty"`
	Retriever string `json:"retriever,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Ack is expected on the ack topic for every command.
type Ack struct {
	CommandID string `json:"command_id"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// Host talks to a game host bridge over MQTT. It reads snapshots published
// on the state topic and sends UI commands that the bridge acknowledges.
type Host struct {
	cli        pahoClient
	cfg        Config
	logger     logger.Logger
	backoff    time.Duration
	ackTimeout time.Duration
	staleAfter time.Duration
	now        func() time.Time

	mu       sync.Mutex
	ackChans map[string]chan Ack
	state    *model.Snapshot
	stateAt  time.Time
}

// NewHost connects to the broker and subscribes to the state and ack topics.
func NewHost(cfg Config) (*Host, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_host")
	h := &Host{
		cfg:        cfg,
		logger:     log,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		ackTimeout: time.Duration(cfg.AckTimeoutMS) * time.Millisecond,
		staleAfter: time.Duration(cfg.StaleAfterMS) * time.Millisecond,
		now:        time.Now,
		ackChans:   make(map[string]chan Ack),
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(cfg.StateTopic, cfg.qos("state"), h.onState); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe %s error: %v", cfg.StateTopic, token.Error())
		}
		if token := c.Subscribe(cfg.AckTopic, cfg.qos("ack"), h.onAck); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe %s error: %v", cfg.AckTopic, token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	h.cli = c
	return h, nil
}

func (h *Host) onState(_ paho.Client, msg paho.Message) {
	var snap model.Snapshot
	if err := json.Unmarshal(msg.Payload(), &snap); err != nil {
		h.logger.Errorf("failed to decode state: %v", err)
		return
	}
	now := h.now()
	if snap.TakenAt.IsZero() {
		snap.TakenAt = now
	}
	h.mu.Lock()
	h.state = &snap
	h.stateAt = now
	h.mu.Unlock()
}

func (h *Host) onAck(_ paho.Client, msg paho.Message) {
	var ack Ack
	if err := json.Unmarshal(msg.Payload(), &ack); err != nil {
		h.logger.Errorf("failed to decode ack: %v", err)
		return
	}
	h.mu.Lock()
	ch, ok := h.ackChans[ack.CommandID]
	if ok {
		select {
		case ch <- ack:
		default:
		}
		h.logger.Debugf("received ack %s", ack.CommandID)
	}
	h.mu.Unlock()
}

// Snapshot returns the last state received from the bridge.
func (h *Host) Snapshot(ctx context.Context) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == nil {
		return model.Snapshot{}, ErrNoState
	}
	if h.staleAfter > 0 {
		if age := h.now().Sub(h.stateAt); age > h.staleAfter {
			return model.Snapshot{}, fmt.Errorf("%w: last update %s ago", ErrStaleState, age.Round(time.Millisecond))
		}
	}
	snap := *h.state
	snap.InProgress = append([]model.InProgress(nil), h.state.InProgress...)
	snap.Available = append([]model.Candidate(nil), h.state.Available...)
	snap.Balances = make(model.Balances, len(h.state.Balances))
	for k, v := range h.state.Balances {
		snap.Balances[k] = v
	}
	return snap, nil
}

// Collect asks the bridge to collect the retriever in slot.
func (h *Host) Collect(slot int) error {
	return h.send(Command{Action: ActionCollect, Slot: &slot})
}

// OverrideSelection asks the bridge to select the candidate in the hire dialog.
func (h *Host) OverrideSelection(c model.Candidate) error {
	return h.send(Command{Action: ActionSelect, Retriever: c.Name})
}

// Hire asks the bridge to press hire for the current selection.
func (h *Host) Hire() error {
	return h.send(Command{Action: ActionHire})
}

// send publishes the command and blocks until it is acknowledged.
func (h *Host) send(cmd Command) error {
	cmd.CommandID = uuid.NewString()
	cmd.Timestamp = h.now().UnixMilli()
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	ch := make(chan Ack, 1)
	h.mu.Lock()
	h.ackChans[cmd.CommandID] = ch
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.ackChans, cmd.CommandID)
		h.mu.Unlock()
	}()

	if err := h.publish(cmd, payload); err != nil {
		coremon.CaptureException(err, map[string]string{"module": "mqtt", "action": cmd.Action})
		return err
	}

	timer := time.NewTimer(h.ackTimeout)
	defer timer.Stop()
	select {
	case ack := <-ch:
		if !ack.OK {
			return fmt.Errorf("%w: %s %s", ErrCommandRejected, cmd.Action, ack.Error)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %s %s", ErrAckTimeout, cmd.Action, cmd.CommandID)
	}
}

func (h *Host) publish(cmd Command, payload []byte) error {
	var publishErr error
	for attempt := 0; attempt <= h.cfg.MaxRetries; attempt++ {
		token := h.cli.Publish(h.cfg.CommandTopic, h.cfg.qos("command"), false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			h.logger.Debugf("sent %s command %s", cmd.Action, cmd.CommandID)
			return nil
		}
		h.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < h.cfg.MaxRetries {
			time.Sleep(h.backoff * time.Duration(1<<attempt))
		}
	}
	return publishErr
}

// Disconnect gracefully closes the MQTT connection.
func (h *Host) Disconnect() {
	if h.cli != nil && h.cli.IsConnected() {
		h.cli.Disconnect(250)
	}
}
