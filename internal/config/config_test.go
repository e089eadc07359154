package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want Config
	}{
		{
			name: "empty",
			yaml: "",
			want: Default(),
		},
		{
			name: "full",
			yaml: `
did: hello.did
transport: tcp
addr: 127.0.0.1:9000
metrics: 127.0.0.1:9100
timeout: 5s
cache:
  size: 64
  ttl: 1m
`,
			want: Config{
				DID:       "hello.did",
				Transport: TransportTCP,
				Addr:      "127.0.0.1:9000",
				Metrics:   "127.0.0.1:9100",
				Timeout:   5 * time.Second,
				Cache:     Cache{Size: 64, TTL: time.Minute},
			},
		},
		{
			name: "partial keeps defaults",
			yaml: "transport: grpc\n",
			want: Config{Transport: TransportGRPC, Addr: DefaultAddr, Timeout: 30 * time.Second},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.yaml))
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown transport", "transport: carrier-pigeon\n", "unknown transport"},
		{"unknown key", "trasnport: tcp\n", "trasnport"},
		{"negative cache", "cache:\n  size: -1\n", "negative cache"},
		{"bad duration", "timeout: soon\n", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candid.yaml")
	if err := os.WriteFile(path, []byte("transport: jsonrpc\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Transport != TransportJSONRPC {
		t.Errorf("Transport = %q", cfg.Transport)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
