package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"oneinbox/internal/domain"
	"oneinbox/internal/integrations/paramstore"
)

const fullYAML = `
platforms: [whatsapp, telegram]
default_platform: telegram
auto_user: Soporte
default_user: Cliente
message_cap: 50
state_cap: 10
max_text_length: 280

dialogue:
  ticket_prefix: INB
  greet_follow_up_rate: 0
  seed: 7

simulator:
  users: [Ana, Bruno]
  seeds: [Hola]
  continue_rate: 0.9
  schedule: "@every 5s"

http:
  addr: 127.0.0.1:8080

mqtt:
  broker: tcp://localhost:1883
  topic_prefix: shop
  qos: 1

gateway:
  base_url: https://gateway.local
  token_param: /oneinbox/gateway-token
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	require.NoError(t, err)

	require.Equal(t, []domain.Platform{"whatsapp", "telegram"}, cfg.Platforms)
	require.Equal(t, domain.Platform("telegram"), cfg.DefaultPlatform)
	require.Equal(t, "Soporte", cfg.AutoUser)
	require.Equal(t, "Cliente", cfg.DefaultUser)
	require.Equal(t, 50, cfg.MessageCap)
	require.Equal(t, 10, cfg.StateCap)
	require.Equal(t, 280, cfg.MaxTextLength)
	require.Equal(t, "INB", cfg.Dialogue.TicketPrefix)
	require.Equal(t, 0.0, *cfg.Dialogue.GreetFollowUpRate)
	require.Equal(t, uint64(7), cfg.Dialogue.Seed)
	require.Equal(t, []string{"Ana", "Bruno"}, cfg.Simulator.Users)
	require.Equal(t, []string{"Hola"}, cfg.Simulator.Seeds)
	require.Equal(t, 0.9, *cfg.Simulator.ContinueRate)
	require.Equal(t, "@every 5s", cfg.Simulator.Schedule)
	require.Equal(t, "127.0.0.1:8080", cfg.HTTP.Addr)
	require.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	require.Equal(t, "shop", cfg.MQTT.TopicPrefix)
	require.Equal(t, "oneinbox", cfg.MQTT.ClientID)
	require.Equal(t, byte(1), cfg.MQTT.QoS)
	require.Equal(t, "https://gateway.local", cfg.Gateway.BaseURL)
	require.Equal(t, 10, cfg.Gateway.TimeoutSeconds)
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.Equal(t, domain.Platforms, cfg.Platforms)
	require.Equal(t, domain.WhatsApp, cfg.DefaultPlatform)
	require.Equal(t, "Atención", cfg.AutoUser)
	require.Equal(t, "Usuario", cfg.DefaultUser)
	require.Equal(t, 400, cfg.MessageCap)
	require.Equal(t, 300, cfg.StateCap)
	require.Equal(t, "OIB", cfg.Dialogue.TicketPrefix)
	require.Equal(t, 0.6, *cfg.Dialogue.GreetFollowUpRate)
	require.Equal(t, 0.55, *cfg.Simulator.ContinueRate)
	require.Len(t, cfg.Simulator.Users, 21)
	require.Contains(t, cfg.Simulator.Seeds, "Busco zapatillas")
	require.Empty(t, cfg.Simulator.Schedule)
	require.Empty(t, cfg.MQTT.Broker)
	require.Empty(t, cfg.Gateway.BaseURL)
}

func TestParse_EmptyDocumentIsDefault(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestParse_ValidationErrors(t *testing.T) {
	cases := map[string]string{
		"unknown default platform": "default_platform: telegram",
		"negative cap":             "message_cap: -1",
		"rate out of range":        "dialogue:\n  greet_follow_up_rate: 1.5",
		"continue rate":            "simulator:\n  continue_rate: -0.1",
		"bad schedule":             "simulator:\n  schedule: every now and then",
		"qos":                      "mqtt:\n  qos: 3",
		"gateway without token":    "gateway:\n  base_url: https://gw",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.ErrorContains(t, err, "validation failed")
		})
	}
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("platforms: [whatsapp"))
	require.ErrorContains(t, err, "config: parse")
}

func TestLoad_AppliesEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("message_cap: 50\nstate_cap: 10\n"), 0o600))
	t.Setenv(EnvMessageCap, "20")
	t.Setenv(EnvTicketPrefix, " TKT ")
	t.Setenv(EnvMaxTextLength, "")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 20, cfg.MessageCap)
	require.Equal(t, 10, cfg.StateCap)
	require.Equal(t, "TKT", cfg.Dialogue.TicketPrefix)
	require.Equal(t, 1000, cfg.MaxTextLength)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv(EnvStateCap, "many")
	_, err := FromEnv()
	require.ErrorContains(t, err, EnvStateCap)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "config: read")
}

type fakeParams struct {
	value string
	err   error
}

func (f fakeParams) GetParameter(context.Context, string) (string, error) {
	return f.value, f.err
}

func TestLoadParam(t *testing.T) {
	cfg, err := LoadParam(context.Background(), fakeParams{value: "state_cap: 5"}, "/oneinbox/inbox-config")
	require.NoError(t, err)
	require.Equal(t, 5, cfg.StateCap)
}

func TestLoadParam_MissingParameterUsesDefaults(t *testing.T) {
	notFound := fmt.Errorf("%w: %q", paramstore.ErrNotFound, "/oneinbox/inbox-config")
	cfg, err := LoadParam(context.Background(), fakeParams{err: notFound}, "/oneinbox/inbox-config")
	require.NoError(t, err)
	require.Equal(t, 300, cfg.StateCap)
}

func TestLoadParam_Error(t *testing.T) {
	_, err := LoadParam(context.Background(), fakeParams{err: errors.New("denied")}, "/x")
	require.ErrorContains(t, err, "denied")
}
