// Package config loads the configuration shared by the server and the terminal client: a YAML file,
// an optional .env file, and environment variable fallbacks for credentials and the port.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/MegaGrindStone/simpl-chat/internal/chat"
	"github.com/MegaGrindStone/simpl-chat/internal/prompt"
	"github.com/MegaGrindStone/simpl-chat/internal/services"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPort is used when neither the file nor PORT sets one.
	DefaultPort = "8080"
	// DefaultModel is the instruct model the completion shape was tuned against.
	DefaultModel = "gpt-3.5-turbo-instruct"

	defaultOllamaHost = "http://localhost:11434"
)

// LLMConfig builds the completion backend of one provider.
type LLMConfig interface {
	Completer(logger *slog.Logger) (services.Completer, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Shape    string `yaml:"shape"`

	services.LLMParameters `yaml:",inline"`
}

// Config is the decoded configuration file.
type Config struct {
	Port  string `yaml:"port"`
	Debug bool   `yaml:"debug"`

	SystemPrompt    string `yaml:"systemPrompt"`
	Greeting        string `yaml:"greeting"`
	IntroPrompt     string `yaml:"introPrompt"`
	MaxHistoryChars int    `yaml:"maxHistoryChars"`

	// MaxSessions and SessionIdleTimeout bound the sessions the web server keeps.
	MaxSessions        int           `yaml:"maxSessions"`
	SessionIdleTimeout time.Duration `yaml:"sessionIdleTimeout"`

	// FunctionURL, when set, sends every turn to a deployed chat function instead of calling the LLM
	// in-process.
	FunctionURL string `yaml:"functionURL"`

	LLM LLMConfig `yaml:"llm"`
}

// OpenAIConfig targets api.openai.com or any OpenAI-compatible gateway.
type OpenAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	BaseURL       string `yaml:"baseURL"`
	APIKey        string `yaml:"apiKey"`
}

// OllamaConfig targets an Ollama server.
type OllamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

// AnthropicConfig targets the Anthropic Messages API.
type AnthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"apiKey"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		LLM: &OpenAIConfig{
			BaseLLMConfig: BaseLLMConfig{
				Provider: "openai",
				Model:    DefaultModel,
			},
		},
	}
}

// Load reads the .env file of the working directory, if any, then the YAML file at path. A missing
// file yields Default. Empty settings are filled from the environment afterwards.
func Load(path string) (Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	cfg := Default()

	f, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("error opening config file: %w", err)
	default:
		defer f.Close()
		cfg, err = Decode(f)
		if err != nil {
			return Config{}, err
		}
	}

	if cfg.Port == "" {
		cfg.Port = os.Getenv("PORT")
	}
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}

	return cfg, nil
}

// Decode parses a YAML configuration from r.
func Decode(r io.Reader) (Config, error) {
	cfg := Config{}
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("error decoding config file: %w", err)
	}
	return cfg, nil
}

// UnmarshalYAML decodes the llm section according to its provider.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port               string         `yaml:"port"`
		Debug              bool           `yaml:"debug"`
		SystemPrompt       string         `yaml:"systemPrompt"`
		Greeting           string         `yaml:"greeting"`
		IntroPrompt        string         `yaml:"introPrompt"`
		MaxHistoryChars    int            `yaml:"maxHistoryChars"`
		MaxSessions        int            `yaml:"maxSessions"`
		SessionIdleTimeout time.Duration  `yaml:"sessionIdleTimeout"`
		FunctionURL        string         `yaml:"functionURL"`
		LLM                map[string]any `yaml:"llm"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.Debug = rawConfig.Debug
	c.SystemPrompt = rawConfig.SystemPrompt
	c.Greeting = rawConfig.Greeting
	c.IntroPrompt = rawConfig.IntroPrompt
	c.MaxHistoryChars = rawConfig.MaxHistoryChars
	c.MaxSessions = rawConfig.MaxSessions
	c.SessionIdleTimeout = rawConfig.SessionIdleTimeout
	c.FunctionURL = rawConfig.FunctionURL

	if rawConfig.MaxHistoryChars < 0 {
		return fmt.Errorf("maxHistoryChars must not be negative")
	}

	if rawConfig.LLM == nil {
		c.LLM = Default().LLM
		return nil
	}

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm LLMConfig
	switch llmProvider {
	case "openai":
		llm = &OpenAIConfig{}
	case "ollama":
		llm = &OllamaConfig{}
	case "anthropic":
		llm = &AnthropicConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm

	return nil
}

// Options returns the session options of the configuration.
func (c Config) Options() chat.Options {
	return chat.Options{
		Greeting:    c.Greeting,
		IntroPrompt: c.IntroPrompt,
	}
}

// Limits returns the bounds of the web server's session registry.
func (c Config) Limits() chat.Limits {
	return chat.Limits{
		IdleTimeout: c.SessionIdleTimeout,
		MaxSessions: c.MaxSessions,
	}
}

// AIChat builds the in-process chat function.
func (c Config) AIChat(logger *slog.Logger) (services.AIChat, error) {
	if c.LLM == nil {
		return services.AIChat{}, fmt.Errorf("llm is not configured")
	}

	completer, err := c.LLM.Completer(logger)
	if err != nil {
		return services.AIChat{}, err
	}
	return services.NewAIChat(completer, prompt.NewFormatter(c.MaxHistoryChars), c.SystemPrompt, logger), nil
}

// Replier returns what sessions talk to: the deployed chat function when FunctionURL is set, the
// in-process one otherwise.
func (c Config) Replier(logger *slog.Logger) (chat.Replier, error) {
	if c.FunctionURL != "" {
		return services.NewRemoteAIChat(c.FunctionURL, logger), nil
	}

	aiChat, err := c.AIChat(logger)
	if err != nil {
		return nil, err
	}
	return aiChat, nil
}

func (b BaseLLMConfig) resolve() (string, services.Shape, services.LLMParameters, error) {
	if b.Model == "" {
		return "", "", services.LLMParameters{}, fmt.Errorf("model is required")
	}

	shape, err := services.ParseShape(b.Shape)
	if err != nil {
		return "", "", services.LLMParameters{}, err
	}

	params := services.DefaultLLMParameters()
	if b.Temperature != nil {
		params.Temperature = b.Temperature
	}
	if b.TopP != nil {
		params.TopP = b.TopP
	}
	if b.MaxTokens != 0 {
		params.MaxTokens = b.MaxTokens
	}
	if len(b.Stop) > 0 {
		params.Stop = b.Stop
	}

	return b.Model, shape, params, nil
}

// Completer builds the OpenAI backend. The API key falls back to OPENAI_API_KEY.
func (o OpenAIConfig) Completer(logger *slog.Logger) (services.Completer, error) {
	model, shape, params, err := o.resolve()
	if err != nil {
		return nil, err
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, model, shape, params, logger), nil
}

// Completer builds the Ollama backend. The host falls back to OLLAMA_HOST, then to a local server.
func (o OllamaConfig) Completer(logger *slog.Logger) (services.Completer, error) {
	model, shape, params, err := o.resolve()
	if err != nil {
		return nil, err
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = defaultOllamaHost
	}

	ollama, err := services.NewOllama(host, model, shape, params, logger)
	if err != nil {
		return nil, err
	}
	return ollama, nil
}

// Completer builds the Anthropic backend. The API key falls back to ANTHROPIC_API_KEY. Without an
// explicit shape the structured chat shape is used.
func (a AnthropicConfig) Completer(logger *slog.Logger) (services.Completer, error) {
	if a.Shape == "" {
		a.Shape = string(services.ShapeChat)
	}
	model, shape, params, err := a.resolve()
	if err != nil {
		return nil, err
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return services.NewAnthropic(apiKey, a.Endpoint, model, shape, params, logger), nil
}
