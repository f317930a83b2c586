package config

import (
	"testing"
)

func TestResolveHost(t *testing.T) {
	tests := []struct {
		host     string
		inDocker bool
		expected string
	}{
		{"oracle.example.com", true, "oracle.example.com"},
		{"192.168.1.100", true, "192.168.1.100"},
		{"localhost", true, "host.docker.internal"},
		{"LOCALHOST", true, "host.docker.internal"},
		{"127.0.0.1", true, "host.docker.internal"},
		{"::1", true, "host.docker.internal"},
		{"localhost", false, "localhost"},
	}

	for _, tt := range tests {
		if got := resolveHost(tt.host, tt.inDocker, defaultDockerHostAlias); got != tt.expected {
			t.Errorf("resolveHost(%q, %v) = %q, want %q", tt.host, tt.inDocker, got, tt.expected)
		}
	}
}

func TestResolveHostForDocker_NonLoopbackUnchanged(t *testing.T) {
	t.Setenv(DockerHostAliasEnv, "gateway.internal")

	for _, host := range []string{"mydb.example.com", "10.0.0.5"} {
		if got := ResolveHostForDocker(host); got != host {
			t.Errorf("ResolveHostForDocker(%q) = %q, want unchanged", host, got)
		}
	}

	got := ResolveHostForDocker("localhost")
	if IsRunningInDocker() {
		if got != "gateway.internal" {
			t.Errorf("expected alias override in Docker, got %q", got)
		}
	} else if got != "localhost" {
		t.Errorf("expected localhost outside Docker, got %q", got)
	}
}
