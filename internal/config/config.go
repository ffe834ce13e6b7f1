// Package config provides YAML-based configuration loading for the inbox
// assistant.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"oneinbox/internal/domain"
	"oneinbox/internal/integrations/paramstore"
)

// Environment variables that override the loaded document.
const (
	EnvMessageCap    = "INBOX_MESSAGE_CAP"
	EnvStateCap      = "INBOX_STATE_CAP"
	EnvTicketPrefix  = "INBOX_TICKET_PREFIX"
	EnvMaxTextLength = "INBOX_MAX_TEXT_LENGTH"
)

var defaultUsers = []string{
	"Sofía", "Lucas", "Valentina", "Mateo", "Camila", "Diego", "Ana", "Bruno", "María", "Nico", "Carla",
	"Julián", "Mica", "Tomás", "Paula", "Fede", "Mauri", "Jime", "Abi", "Enzo", "Gabi",
}

var defaultSeeds = []string{
	"Hola", "Buenas", "Buen día", "Hola, ¿qué tal?",
	"Quiero comprar algo", "¿Tienen ropa?", "Busco zapatillas", "Necesito una mochila", "Quiero ver opciones de remeras",
	"Me llegó un cobro que no reconozco", "Me cobraron dos veces", "Quiero pedir un reembolso", "Tengo una consulta por un pago",
	"No puedo entrar a mi cuenta", "Olvidé mi contraseña", "Me pide un código y no me llega", "Se me bloqueó la cuenta",
	"¿Hay novedades de mi caso?", "¿Cuánto tarda el proceso?", "¿Me confirmás el estado del trámite?",
	"No funciona, me da error", "No me deja finalizar", "Se me cae al abrir",
	"Quiero actualizar mis datos", "Necesito cambiar mi correo", "Quiero modificar mi teléfono",
}

// Config is the top-level configuration.
type Config struct {
	Platforms       []domain.Platform `yaml:"platforms"`
	DefaultPlatform domain.Platform   `yaml:"default_platform"`
	AutoUser        string            `yaml:"auto_user"`
	DefaultUser     string            `yaml:"default_user"`
	MessageCap      int               `yaml:"message_cap"`
	StateCap        int               `yaml:"state_cap"`
	MaxTextLength   int               `yaml:"max_text_length"`
	Dialogue        DialogueConfig    `yaml:"dialogue"`
	Simulator       SimulatorConfig   `yaml:"simulator"`
	HTTP            HTTPConfig        `yaml:"http"`
	MQTT            MQTTConfig        `yaml:"mqtt"`
	Gateway         GatewayConfig     `yaml:"gateway"`
	Archive         ArchiveConfig     `yaml:"archive"`
}

// DialogueConfig tunes the reply engine.
type DialogueConfig struct {
	TicketPrefix string `yaml:"ticket_prefix"`
	// GreetFollowUpRate is a pointer so that an explicit 0 survives defaults.
	GreetFollowUpRate *float64 `yaml:"greet_follow_up_rate"`
	// Seed fixes the random source; 0 seeds from the runtime.
	Seed uint64 `yaml:"seed"`
}

// SimulatorConfig drives the demo traffic generator.
type SimulatorConfig struct {
	Users        []string `yaml:"users"`
	Seeds        []string `yaml:"seeds"`
	ContinueRate *float64 `yaml:"continue_rate"`
	// Schedule is a cron spec; empty disables scheduled traffic.
	Schedule string `yaml:"schedule"`
}

// HTTPConfig holds the listen address of `oneinbox serve`.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// MQTTConfig enables the MQTT channel bridge when Broker is set.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

// GatewayConfig enables outbound delivery when BaseURL is set.
type GatewayConfig struct {
	BaseURL        string `yaml:"base_url"`
	TokenParam     string `yaml:"token_param"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ArchiveConfig enables the local SQL archive when SQLitePath is set.
type ArchiveConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads a YAML config file from path, applies environment overrides
// and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return parse(data, os.LookupEnv)
}

// FromEnv returns the built-in configuration with environment overrides.
func FromEnv() (*Config, error) {
	return parse(nil, os.LookupEnv)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	return parse(data, nil)
}

// ParamGetter reads one parameter by name.
type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// LoadParam reads the YAML document stored in parameter name. A missing
// parameter yields the built-in configuration. Environment overrides are
// applied in both cases.
func LoadParam(ctx context.Context, p ParamGetter, name string) (*Config, error) {
	raw, err := p.GetParameter(ctx, name)
	if errors.Is(err, paramstore.ErrNotFound) {
		return FromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("config: load parameter %s: %w", name, err)
	}
	return parse([]byte(raw), os.LookupEnv)
}

func parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if lookup != nil {
		if err := cfg.applyEnv(lookup); err != nil {
			return nil, err
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	ints := []struct {
		key string
		dst *int
	}{
		{EnvMessageCap, &c.MessageCap},
		{EnvStateCap, &c.StateCap},
		{EnvMaxTextLength, &c.MaxTextLength},
	}
	for _, e := range ints {
		v, ok := lookup(e.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s: %w", e.key, err)
		}
		*e.dst = n
	}
	if v, ok := lookup(EnvTicketPrefix); ok && strings.TrimSpace(v) != "" {
		c.Dialogue.TicketPrefix = strings.TrimSpace(v)
	}
	return nil
}

// applyDefaults fills in unset values.
func (c *Config) applyDefaults() {
	if len(c.Platforms) == 0 {
		c.Platforms = slices.Clone(domain.Platforms)
	}
	if c.DefaultPlatform == "" {
		c.DefaultPlatform = c.Platforms[0]
	}
	if c.AutoUser == "" {
		c.AutoUser = "Atención"
	}
	if c.DefaultUser == "" {
		c.DefaultUser = "Usuario"
	}
	if c.MessageCap == 0 {
		c.MessageCap = 400
	}
	if c.StateCap == 0 {
		c.StateCap = 300
	}
	if c.MaxTextLength == 0 {
		c.MaxTextLength = 1000
	}
	if c.Dialogue.TicketPrefix == "" {
		c.Dialogue.TicketPrefix = "OIB"
	}
	if c.Dialogue.GreetFollowUpRate == nil {
		c.Dialogue.GreetFollowUpRate = ptr(0.6)
	}
	if len(c.Simulator.Users) == 0 {
		c.Simulator.Users = slices.Clone(defaultUsers)
	}
	if len(c.Simulator.Seeds) == 0 {
		c.Simulator.Seeds = slices.Clone(defaultSeeds)
	}
	if c.Simulator.ContinueRate == nil {
		c.Simulator.ContinueRate = ptr(0.55)
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":5000"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "oneinbox"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "oneinbox"
	}
	if c.Gateway.TimeoutSeconds == 0 {
		c.Gateway.TimeoutSeconds = 10
	}
}

// validate checks that all fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	for i, p := range c.Platforms {
		if strings.TrimSpace(string(p)) == "" {
			errs = append(errs, fmt.Sprintf("platforms[%d] is empty", i))
		}
	}
	if !slices.Contains(c.Platforms, c.DefaultPlatform) {
		errs = append(errs, fmt.Sprintf("default_platform %q is not in platforms", c.DefaultPlatform))
	}
	if c.MessageCap < 0 {
		errs = append(errs, "message_cap must be positive")
	}
	if c.StateCap < 0 {
		errs = append(errs, "state_cap must be positive")
	}
	if c.MaxTextLength < 0 {
		errs = append(errs, "max_text_length must be positive")
	}
	if r := *c.Dialogue.GreetFollowUpRate; r < 0 || r > 1 {
		errs = append(errs, "dialogue.greet_follow_up_rate must be within [0,1]")
	}
	if r := *c.Simulator.ContinueRate; r < 0 || r > 1 {
		errs = append(errs, "simulator.continue_rate must be within [0,1]")
	}
	if s := c.Simulator.Schedule; s != "" {
		if _, err := cron.ParseStandard(s); err != nil {
			errs = append(errs, fmt.Sprintf("simulator.schedule: %v", err))
		}
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1 or 2")
	}
	if c.Gateway.BaseURL != "" && c.Gateway.TokenParam == "" {
		errs = append(errs, "gateway.token_param is required with gateway.base_url")
	}
	if c.Gateway.TimeoutSeconds < 0 {
		errs = append(errs, "gateway.timeout_seconds must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
