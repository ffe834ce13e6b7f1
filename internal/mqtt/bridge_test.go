package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"oneinbox/internal/domain"
	"oneinbox/internal/usecase"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []published
}

func (p *fakePublisher) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return newToken(p.err)
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordSender struct {
	inputs []usecase.SendInput
	err    error
}

func (s *recordSender) Send(_ context.Context, in usecase.SendInput) ([]domain.Message, error) {
	s.inputs = append(s.inputs, in)
	if s.err != nil {
		return nil, s.err
	}
	return []domain.Message{{ThreadID: in.Platform + ":x"}, {}}, nil
}

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	b, err := NewBridge(BridgeConfig{BrokerURL: "tcp://localhost:1883", ClientID: "test", TopicPrefix: "/shop/", QoS: 1}, nil)
	require.NoError(t, err)
	return b
}

func TestNewBridge_Validation(t *testing.T) {
	_, err := NewBridge(BridgeConfig{TopicPrefix: "shop"}, nil)
	require.ErrorContains(t, err, "broker")

	_, err = NewBridge(BridgeConfig{BrokerURL: "tcp://b:1883", TopicPrefix: " / "}, nil)
	require.ErrorContains(t, err, "prefix")

	_, err = NewBridge(BridgeConfig{BrokerURL: "tcp://b:1883", TopicPrefix: "shop", QoS: 3}, nil)
	require.ErrorContains(t, err, "qos")
}

func TestBridge_StartRequiresSender(t *testing.T) {
	b := newTestBridge(t)
	require.Error(t, b.Start(context.Background(), nil))
}

func TestHandleInbound_JSONPayload(t *testing.T) {
	b := newTestBridge(t)
	sender := &recordSender{}
	b.attach(&fakePublisher{}, sender)

	b.handleInbound(nil, fakeMessage{topic: "shop/inbound/instagram", payload: []byte(`{"user":"Ana","text":"Hola"}`)})
	require.Equal(t, []usecase.SendInput{{Platform: "instagram", User: "Ana", Text: "Hola"}}, sender.inputs)
}

func TestHandleInbound_PlainTextPayload(t *testing.T) {
	b := newTestBridge(t)
	sender := &recordSender{}
	b.attach(&fakePublisher{}, sender)

	b.handleInbound(nil, fakeMessage{topic: "shop/inbound/whatsapp", payload: []byte("Busco zapatillas")})
	require.Equal(t, []usecase.SendInput{{Platform: "whatsapp", Text: "Busco zapatillas"}}, sender.inputs)
}

func TestHandleInbound_SkipsInvalidTopic(t *testing.T) {
	b := newTestBridge(t)
	sender := &recordSender{}
	b.attach(&fakePublisher{}, sender)

	b.handleInbound(nil, fakeMessage{topic: "other/inbound/whatsapp", payload: []byte("hola")})
	b.handleInbound(nil, fakeMessage{topic: "shop/outbound/whatsapp", payload: []byte("hola")})
	require.Empty(t, sender.inputs)
}

func TestHandleInbound_SenderErrorIsLogged(t *testing.T) {
	b := newTestBridge(t)
	sender := &recordSender{err: errors.New("text_too_long")}
	b.attach(&fakePublisher{}, sender)

	require.NotPanics(t, func() {
		b.handleInbound(nil, fakeMessage{topic: "shop/inbound/whatsapp", payload: []byte("hola")})
	})
	require.Len(t, sender.inputs, 1)
}

func TestDeliver_PublishesOnPlatformTopic(t *testing.T) {
	b := newTestBridge(t)
	pub := &fakePublisher{}
	b.attach(pub, &recordSender{})

	reply := domain.Message{ID: "out-1", ThreadID: "facebook:ana", Platform: domain.Facebook, Role: domain.RoleSystem, Text: "¡Hola!"}
	require.NoError(t, b.Deliver(context.Background(), reply))

	require.Len(t, pub.sent, 1)
	require.Equal(t, "shop/outbound/facebook", pub.sent[0].topic)
	require.Equal(t, byte(1), pub.sent[0].qos)
	var got domain.Message
	require.NoError(t, json.Unmarshal(pub.sent[0].payload, &got))
	require.Equal(t, reply, got)
}

func TestDeliver_PublishError(t *testing.T) {
	b := newTestBridge(t)
	b.attach(&fakePublisher{err: errors.New("not connected")}, &recordSender{})
	require.ErrorContains(t, b.Deliver(context.Background(), domain.Message{Platform: domain.WhatsApp}), "not connected")
}

func TestDeliver_NotStarted(t *testing.T) {
	b := newTestBridge(t)
	require.ErrorContains(t, b.Deliver(context.Background(), domain.Message{Platform: domain.WhatsApp}), "not started")
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform("shop/eu/inbound/whatsapp", "shop/eu")
	require.NoError(t, err)
	require.Equal(t, domain.WhatsApp, p)

	for _, topic := range []string{"shop/eu/inbound", "shop/eu/inbound/whatsapp/extra", "shop/us/inbound/whatsapp", "shop/eu/outbound/whatsapp", "shop/eu/inbound/"} {
		_, err := ParsePlatform(topic, "shop/eu")
		require.Error(t, err, topic)
	}
}

func TestTopics(t *testing.T) {
	require.Equal(t, "shop/inbound/+", TopicInboundAll("shop"))
	require.Equal(t, "shop/inbound/instagram", TopicInbound("shop", domain.Instagram))
	require.Equal(t, "shop/outbound/instagram", TopicOutbound("shop", domain.Instagram))
}
