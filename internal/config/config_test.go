package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConstants(t *testing.T) {
	if DefaultHost != "0.0.0.0" {
		t.Errorf("DefaultHost = %v, want '0.0.0.0'", DefaultHost)
	}
	if DefaultPort != 8080 {
		t.Errorf("DefaultPort = %v, want 8080", DefaultPort)
	}
	if DefaultModelID != "sonoisa/sentence-bert-base-ja-mean-tokens-v2" {
		t.Errorf("DefaultModelID = %v", DefaultModelID)
	}
	if DefaultEndpointTimeout != 60*time.Second {
		t.Errorf("DefaultEndpointTimeout = %v, want 60s", DefaultEndpointTimeout)
	}
	if DefaultScaledownWindow != 0 {
		t.Errorf("DefaultScaledownWindow = %v, want 0", DefaultScaledownWindow)
	}
}

func TestNewAppConfig_Defaults(t *testing.T) {
	cfg := NewAppConfig()

	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %v, want 0.0.0.0:8080", cfg.Addr())
	}
	if cfg.APIToken() != "" {
		t.Errorf("APIToken() = %q, want empty", cfg.APIToken())
	}
	if cfg.Backend() != BackendHugot {
		t.Errorf("Backend() = %v, want hugot", cfg.Backend())
	}
	if cfg.Model().Device() != DeviceCUDA {
		t.Errorf("Device() = %v, want cuda", cfg.Model().Device())
	}
	if !cfg.Model().Download() {
		t.Error("Download() should default to true")
	}
	if !cfg.Model().Convert() {
		t.Error("Convert() should default to true")
	}
	if cfg.Model().PreTokenizer() != "auto" {
		t.Errorf("PreTokenizer() = %q, want auto", cfg.Model().PreTokenizer())
	}
	if cfg.EmbeddingEndpoint() != nil {
		t.Error("EmbeddingEndpoint() should be nil by default")
	}
	if cfg.MCPEnabled() {
		t.Error("MCPEnabled() should default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestAppConfig_ModelDir(t *testing.T) {
	cfg := NewAppConfigWithOptions(WithDataDir("/data"))
	if got, want := cfg.ModelDir(), filepath.Join("/data", "models"); got != want {
		t.Errorf("ModelDir() = %v, want %v", got, want)
	}

	cfg = cfg.Apply(WithModelConfig(cfg.Model().WithDir("/opt/models")))
	if got := cfg.ModelDir(); got != "/opt/models" {
		t.Errorf("ModelDir() = %v, want /opt/models", got)
	}
}

func TestAppConfig_ApplyDoesNotMutateReceiver(t *testing.T) {
	base := NewAppConfig()
	changed := base.Apply(WithPort(9000), WithAPIToken("secret"))

	if base.Port() != DefaultPort || base.APIToken() != "" {
		t.Error("Apply should not mutate the receiver")
	}
	if changed.Port() != 9000 || changed.APIToken() != "secret" {
		t.Error("Apply should return the updated config")
	}
}

func TestAppConfig_CORSOriginsIsCopy(t *testing.T) {
	origins := []string{"https://a.example"}
	cfg := NewAppConfigWithOptions(WithCORSOrigins(origins))
	origins[0] = "mutated"

	got := cfg.CORSOrigins()
	if got[0] != "https://a.example" {
		t.Errorf("CORSOrigins()[0] = %v, want https://a.example", got[0])
	}
	got[0] = "mutated"
	if cfg.CORSOrigins()[0] != "https://a.example" {
		t.Error("CORSOrigins should return a copy")
	}
}

func TestAppConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    []AppConfigOption
		wantErr bool
	}{
		{name: "defaults", wantErr: false},
		{name: "unknown backend", opts: []AppConfigOption{WithBackend("tensorflow")}, wantErr: true},
		{name: "openai without endpoint", opts: []AppConfigOption{WithBackend(BackendOpenAI)}, wantErr: true},
		{
			name: "openai with endpoint",
			opts: []AppConfigOption{
				WithBackend(BackendOpenAI),
				WithEmbeddingEndpoint(NewEndpointWithOptions(WithModel("text-embedding-3-small"))),
			},
			wantErr: false,
		},
		{name: "unknown device", opts: []AppConfigOption{WithModelConfig(NewModelConfig().WithDevice("tpu"))}, wantErr: true},
		{name: "unknown pre-tokenizer", opts: []AppConfigOption{WithModelConfig(NewModelConfig().WithPreTokenizer("sudachi"))}, wantErr: true},
		{name: "mecab pre-tokenizer", opts: []AppConfigOption{WithModelConfig(NewModelConfig().WithPreTokenizer("mecab"))}, wantErr: false},
		{name: "negative window", opts: []AppConfigOption{WithScaledownWindow(-time.Second)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAppConfigWithOptions(tt.opts...).Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAppConfig_LogAttrsHidesToken(t *testing.T) {
	cfg := NewAppConfigWithOptions(WithAPIToken("super-secret"))

	for _, attr := range cfg.LogAttrs() {
		if attr.Value.String() == "super-secret" {
			t.Fatalf("LogAttrs leaked the token under %q", attr.Key)
		}
		if attr.Key == "auth_enabled" && !attr.Value.Bool() {
			t.Error("auth_enabled should be true when a token is set")
		}
	}
}

func TestParseList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"a", []string{"a"}},
		{"a, b ,,c", []string{"a", "b", "c"}},
		{" , ", []string{}},
	}

	for _, tt := range tests {
		got := ParseList(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("ParseList(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseList(%q)[%d] = %v, want %v", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}
