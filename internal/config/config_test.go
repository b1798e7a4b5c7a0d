package config_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MegaGrindStone/simpl-chat/internal/chat"
	"github.com/MegaGrindStone/simpl-chat/internal/config"
	"github.com/MegaGrindStone/simpl-chat/internal/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDecodeProviders(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		check func(t *testing.T, llm config.LLMConfig)
	}{
		{
			name: "openai",
			yaml: `
llm:
  provider: openai
  model: gpt-4o-mini
  shape: chat
  baseURL: https://openrouter.ai/api/v1
  temperature: 0.2
  maxTokens: 256
`,
			check: func(t *testing.T, llm config.LLMConfig) {
				cfg, ok := llm.(*config.OpenAIConfig)
				require.True(t, ok, "got %T", llm)
				assert.Equal(t, "gpt-4o-mini", cfg.Model)
				assert.Equal(t, "chat", cfg.Shape)
				assert.Equal(t, "https://openrouter.ai/api/v1", cfg.BaseURL)
				require.NotNil(t, cfg.Temperature)
				assert.InDelta(t, 0.2, *cfg.Temperature, 1e-6)
				assert.Equal(t, 256, cfg.MaxTokens)
			},
		},
		{
			name: "ollama",
			yaml: `
llm:
  provider: ollama
  model: llama3.2
  host: http://ollama:11434
  stop: ["User:"]
`,
			check: func(t *testing.T, llm config.LLMConfig) {
				cfg, ok := llm.(*config.OllamaConfig)
				require.True(t, ok, "got %T", llm)
				assert.Equal(t, "llama3.2", cfg.Model)
				assert.Equal(t, "http://ollama:11434", cfg.Host)
				assert.Equal(t, []string{"User:"}, cfg.Stop)
			},
		},
		{
			name: "anthropic",
			yaml: `
llm:
  provider: anthropic
  model: claude-3-5-haiku-latest
  apiKey: secret
`,
			check: func(t *testing.T, llm config.LLMConfig) {
				cfg, ok := llm.(*config.AnthropicConfig)
				require.True(t, ok, "got %T", llm)
				assert.Equal(t, "claude-3-5-haiku-latest", cfg.Model)
				assert.Equal(t, "secret", cfg.APIKey)
			},
		},
		{
			name: "no llm section",
			yaml: "port: \"3000\"\n",
			check: func(t *testing.T, llm config.LLMConfig) {
				cfg, ok := llm.(*config.OpenAIConfig)
				require.True(t, ok, "got %T", llm)
				assert.Equal(t, config.DefaultModel, cfg.Model)
				assert.Empty(t, cfg.Shape)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Decode(strings.NewReader(tt.yaml))
			require.NoError(t, err)
			tt.check(t, cfg.LLM)
		})
	}
}

func TestDecodeSettings(t *testing.T) {
	cfg, err := config.Decode(strings.NewReader(`
port: "3000"
debug: true
systemPrompt: be brief
greeting: Hi, I am simpl
maxHistoryChars: 2000
maxSessions: 50
sessionIdleTimeout: 10m
functionURL: https://example.com/.netlify/functions/aichat
`))
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "be brief", cfg.SystemPrompt)
	assert.Equal(t, 2000, cfg.MaxHistoryChars)
	assert.Equal(t, chat.Limits{IdleTimeout: 10 * time.Minute, MaxSessions: 50}, cfg.Limits())
	assert.Equal(t, "Hi, I am simpl", cfg.Options().Greeting)
	assert.Equal(t, "https://example.com/.netlify/functions/aichat", cfg.FunctionURL)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "missing provider", yaml: "llm:\n  model: x\n", wantErr: "llm provider is required"},
		{name: "unknown provider", yaml: "llm:\n  provider: gemini\n", wantErr: "unknown llm provider: gemini"},
		{name: "negative budget", yaml: "maxHistoryChars: -1\n", wantErr: "maxHistoryChars"},
		{name: "invalid yaml", yaml: "port: [\n", wantErr: "error decoding config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Decode(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	cfg, err := config.Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.IsType(t, &config.OpenAIConfig{}, cfg.LLM)
}

func TestLoad(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv("PORT", "")

		cfg, err := config.Load(filepath.Join(t.TempDir(), "config.yaml"))
		require.NoError(t, err)
		assert.Equal(t, config.DefaultPort, cfg.Port)
		assert.IsType(t, &config.OpenAIConfig{}, cfg.LLM)
	})

	t.Run("port from environment", func(t *testing.T) {
		t.Setenv("PORT", "9090")

		cfg, err := config.Load(filepath.Join(t.TempDir(), "config.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "9090", cfg.Port)
	})

	t.Run("file wins over environment", func(t *testing.T) {
		t.Setenv("PORT", "9090")

		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("port: \"3000\"\n"), 0o600))

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "3000", cfg.Port)
	})
}

func TestCompleter(t *testing.T) {
	tests := []struct {
		name    string
		llm     config.LLMConfig
		want    services.Completer
		wantErr string
	}{
		{
			name: "openai",
			llm:  &config.OpenAIConfig{BaseLLMConfig: config.BaseLLMConfig{Model: "gpt-3.5-turbo-instruct"}},
			want: services.OpenAI{},
		},
		{
			name: "ollama default host",
			llm:  &config.OllamaConfig{BaseLLMConfig: config.BaseLLMConfig{Model: "llama3.2"}},
			want: services.Ollama{},
		},
		{
			name: "anthropic defaults to chat shape",
			llm:  &config.AnthropicConfig{BaseLLMConfig: config.BaseLLMConfig{Model: "claude"}},
			want: services.Anthropic{},
		},
		{
			name: "anthropic completion shape",
			llm:  &config.AnthropicConfig{BaseLLMConfig: config.BaseLLMConfig{Model: "claude", Shape: "completion"}},
			want: services.Anthropic{},
		},
		{
			name:    "missing model",
			llm:     &config.OpenAIConfig{},
			wantErr: "model is required",
		},
		{
			name:    "unknown shape",
			llm:     &config.OpenAIConfig{BaseLLMConfig: config.BaseLLMConfig{Model: "m", Shape: "stream"}},
			wantErr: "unknown prompt shape",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OLLAMA_HOST", "")

			got, err := tt.llm.Completer(testLogger())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestReplier(t *testing.T) {
	cfg := config.Default()

	r, err := cfg.Replier(testLogger())
	require.NoError(t, err)
	assert.IsType(t, services.AIChat{}, r)

	cfg.FunctionURL = "https://example.com/api/aichat"
	r, err = cfg.Replier(testLogger())
	require.NoError(t, err)
	assert.IsType(t, services.RemoteAIChat{}, r)
}
