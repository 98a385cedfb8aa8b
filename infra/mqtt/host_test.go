package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/retrieverd/core/model"
	coremon "github.com/kilianp07/retrieverd/core/monitoring"
)

type published struct {
	topic   string
	qos     byte
	payload []byte
}

// mockClient implements pahoClient for tests
type mockClient struct {
	mu         sync.Mutex
	opts       *paho.ClientOptions
	subscribed []struct {
		topic string
		qos   byte
	}
	handlers    map[string]paho.MessageHandler
	published   []published
	publishErrs []error
	// onPublish runs after a successful publish, e.g. to answer with an ack.
	onPublish func(m *mockClient, payload []byte)
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	m.mu.Lock()
	p, _ := payload.([]byte)
	m.published = append(m.published, published{topic, qos, p})
	var err error
	if len(m.publishErrs) > 0 {
		err = m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
	}
	hook := m.onPublish
	m.mu.Unlock()
	if err == nil && hook != nil {
		hook(m, p)
	}
	return &dummyToken{err: err}
}
func (m *mockClient) Subscribe(topic string, qos byte, cb paho.MessageHandler) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribed = append(m.subscribed, struct {
		topic string
		qos   byte
	}{topic, qos})
	if m.handlers == nil {
		m.handlers = make(map[string]paho.MessageHandler)
	}
	m.handlers[topic] = cb
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

// deliver hands a payload to the handler subscribed on topic.
func (m *mockClient) deliver(topic string, payload []byte) {
	m.mu.Lock()
	cb := m.handlers[topic]
	m.mu.Unlock()
	if cb != nil {
		cb(m, mockMessage{payload})
	}
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct{ p []byte }

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return "" }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}

// ackWith answers every command with the given result.
func ackWith(ok bool, msg string) func(*mockClient, []byte) {
	return func(m *mockClient, payload []byte) {
		var cmd Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return
		}
		ack, _ := json.Marshal(Ack{CommandID: cmd.CommandID, OK: ok, Error: msg})
		m.deliver(DefaultAckTopic, ack)
	}
}

func newTestHost(t *testing.T, mc *mockClient, cfg Config) *Host {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
	if cfg.Broker == "" {
		cfg.Broker = "tcp://localhost:1883"
	}
	h, err := NewHost(cfg)
	require.NoError(t, err)
	return h
}

func TestNewHostSubscribes(t *testing.T) {
	mc := &mockClient{}
	newTestHost(t, mc, Config{QoS: map[string]byte{"state": 1, "ack": 2}})
	require.Len(t, mc.subscribed, 2)
	assert.Equal(t, DefaultStateTopic, mc.subscribed[0].topic)
	assert.Equal(t, byte(1), mc.subscribed[0].qos)
	assert.Equal(t, DefaultAckTopic, mc.subscribed[1].topic)
	assert.Equal(t, byte(2), mc.subscribed[1].qos)
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	h := newTestHost(t, mc, Config{LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1})
	assert.True(t, mc.opts.WillEnabled)
	assert.Equal(t, "lwt", mc.opts.WillTopic)
	assert.Equal(t, "bye", string(mc.opts.WillPayload))
	h.Disconnect()
	assert.Empty(t, mc.published)
}

func TestHostSnapshot(t *testing.T) {
	mc := &mockClient{}
	h := newTestHost(t, mc, Config{StaleAfterMS: 1000})
	now := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	_, err := h.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrNoState)

	mc.deliver(DefaultStateTopic, []byte(`{"free_slots":1,"in_progress":[{"name":"R-01","remaining_seconds":0}],"available":[{"name":"R-02","costs":[{"resource_id":"credits","amount":50}]}],"balances":{"credits":120}}`))
	snap, err := h.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.FreeSlots)
	assert.Equal(t, now, snap.TakenAt)
	assert.Equal(t, 120.0, snap.Balances[model.ResourceCredits])
	require.Len(t, snap.Available, 1)

	snap.Balances[model.ResourceCredits] = 0
	again, err := h.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 120.0, again.Balances[model.ResourceCredits])

	now = now.Add(2 * time.Second)
	_, err = h.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrStaleState)
}

func TestHostIgnoresInvalidState(t *testing.T) {
	mc := &mockClient{}
	h := newTestHost(t, mc, Config{})
	mc.deliver(DefaultStateTopic, []byte("not json"))
	_, err := h.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrNoState)
}

func TestHostCommandsAcked(t *testing.T) {
	mc := &mockClient{onPublish: ackWith(true, "")}
	h := newTestHost(t, mc, Config{QoS: map[string]byte{"command": 1}})

	require.NoError(t, h.Collect(2))
	require.NoError(t, h.OverrideSelection(model.Candidate{Name: "R-01"}))
	require.NoError(t, h.Hire())

	require.Len(t, mc.published, 3)
	var cmds []Command
	for _, p := range mc.published {
		assert.Equal(t, DefaultCommandTopic, p.topic)
		assert.Equal(t, byte(1), p.qos)
		var c Command
		require.NoError(t, json.Unmarshal(p.payload, &c))
		assert.NotEmpty(t, c.CommandID)
		cmds = append(cmds, c)
	}
	assert.Equal(t, ActionCollect, cmds[0].Action)
	require.NotNil(t, cmds[0].Slot)
	assert.Equal(t, 2, *cmds[0].Slot)
	assert.Equal(t, ActionSelect, cmds[1].Action)
	assert.Equal(t, "R-01", cmds[1].Retriever)
	assert.Equal(t, ActionHire, cmds[2].Action)
	assert.Nil(t, cmds[2].Slot)
	assert.Empty(t, h.ackChans)
}

func TestHostCommandRejected(t *testing.T) {
	mc := &mockClient{onPublish: ackWith(false, "dialog closed")}
	h := newTestHost(t, mc, Config{})
	err := h.Hire()
	require.ErrorIs(t, err, ErrCommandRejected)
	assert.Contains(t, err.Error(), "dialog closed")
}

func TestHostAckTimeout(t *testing.T) {
	mc := &mockClient{}
	h := newTestHost(t, mc, Config{AckTimeoutMS: 5})
	err := h.Collect(0)
	assert.ErrorIs(t, err, ErrAckTimeout)
	assert.Empty(t, h.ackChans)
}

func TestHostUnknownAckIgnored(t *testing.T) {
	mc := &mockClient{}
	h := newTestHost(t, mc, Config{})
	mc.deliver(DefaultAckTopic, []byte(`{"command_id":"nope","ok":true}`))
	mc.deliver(DefaultAckTopic, []byte(`{`))
	assert.Empty(t, h.ackChans)
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}, onPublish: ackWith(true, "")}
	h := newTestHost(t, mc, Config{MaxRetries: 1, BackoffMS: 1})
	require.NoError(t, h.Hire())
	assert.Len(t, mc.published, 2)
}

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) Flush(time.Duration) {}

func TestPublishErrorCaptured(t *testing.T) {
	fail := errors.New("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail}}
	mon := &recordMonitor{}
	coremon.Init(mon)
	t.Cleanup(func() { coremon.Init(coremon.NopMonitor{}) })

	h := newTestHost(t, mc, Config{MaxRetries: 1, BackoffMS: 1})
	err := h.OverrideSelection(model.Candidate{Name: "R-02"})
	require.ErrorIs(t, err, fail)
	require.Error(t, mon.err)
	assert.Equal(t, "mqtt", mon.tags["module"])
	assert.Equal(t, ActionSelect, mon.tags["action"])
}

func TestHostSnapshotFoldsBalanceKeys(t *testing.T) {
	mc := &mockClient{}
	h := newTestHost(t, mc, Config{})
	mc.deliver(DefaultStateTopic, []byte(`{"free_slots":1,"balances":{"Credits":500,"Uridium":2}}`))
	snap, err := h.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Balances{model.ResourceCredits: 500, model.ResourceUridium: 2}, snap.Balances)
}
