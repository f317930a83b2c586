package config

import (
	"os"
	"strings"
	"sync"
)

// DockerHostAliasEnv overrides the name used to reach the Docker host from a container.
const DockerHostAliasEnv = "DBP_DOCKER_HOST_ALIAS"

const defaultDockerHostAlias = "host.docker.internal"

var (
	isDockerOnce   sync.Once
	isDockerResult bool
)

// IsRunningInDocker reports whether /.dockerenv exists. The result is cached.
func IsRunningInDocker() bool {
	isDockerOnce.Do(func() {
		_, err := os.Stat("/.dockerenv")
		isDockerResult = err == nil
	})
	return isDockerResult
}

// ResolveHostForDocker rewrites loopback hosts so schema inspection from inside
// a container reaches a database on the Docker host. Connector definitions sent
// to the compliance engine keep the configured host.
func ResolveHostForDocker(host string) string {
	alias := os.Getenv(DockerHostAliasEnv)
	if alias == "" {
		alias = defaultDockerHostAlias
	}
	return resolveHost(host, IsRunningInDocker(), alias)
}

func resolveHost(host string, inDocker bool, alias string) string {
	if !inDocker {
		return host
	}
	switch strings.ToLower(host) {
	case "localhost", "127.0.0.1", "::1":
		return alias
	}
	return host
}
