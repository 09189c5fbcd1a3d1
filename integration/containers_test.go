//go:build integration

package integration

import (
	"context"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	testcontainers "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// service describes one backend container.
type service struct {
	name  string
	image string
	port  nat.Port
	env   map[string]string
	cmd   []string
	wait  wait.Strategy
}

var services = map[string]service{
	"mysql": {
		name:  "mysql",
		image: "mysql:8.0",
		port:  "3306/tcp",
		env:   map[string]string{"MYSQL_ROOT_PASSWORD": "pass", "MYSQL_DATABASE": "app"},
		wait:  wait.ForLog("port: 3306  MySQL Community Server").WithStartupTimeout(120 * time.Second),
	},
	"pgsql": {
		name:  "pgsql",
		image: "postgres:16-bookworm",
		port:  "5432/tcp",
		env:   map[string]string{"POSTGRES_PASSWORD": "pass", "POSTGRES_USER": "user", "POSTGRES_DB": "app"},
		wait:  wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	},
	"redis": {
		name:  "redis",
		image: "redis:7-bookworm",
		port:  "6379/tcp",
		wait:  wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	},
	"memcache": {
		name:  "memcache",
		image: "memcached:1.6-bookworm",
		port:  "11211/tcp",
		wait:  wait.ForListeningPort("11211/tcp").WithStartupTimeout(30 * time.Second),
	},
	"nats": {
		name:  "nats",
		image: "nats:2",
		port:  "4222/tcp",
		cmd:   []string{"-js"},
		wait:  wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
	},
	"dynamodb": {
		name:  "dynamodb",
		image: "amazon/dynamodb-local:latest",
		port:  "8000/tcp",
		wait:  wait.ForListeningPort("8000/tcp").WithStartupTimeout(45 * time.Second),
	},
}

// selectedBackends reads INTEGRATION_DRIVER: "all" (default) or a
// comma-separated list such as "redis,pgsql".
func selectedBackends() map[string]bool {
	selected := map[string]bool{}
	value := strings.TrimSpace(strings.ToLower(os.Getenv("INTEGRATION_DRIVER")))
	for name := range services {
		selected[name] = value == "" || value == "all"
	}
	for _, name := range strings.Split(value, ",") {
		if _, ok := services[strings.TrimSpace(name)]; ok {
			selected[strings.TrimSpace(name)] = true
		}
	}
	return selected
}

// start runs the named service for the test and returns its host and mapped port.
func start(t *testing.T, name string) (string, string) {
	t.Helper()
	if !selectedBackends()[name] {
		t.Skipf("%s not selected by INTEGRATION_DRIVER", name)
	}
	svc := services[name]
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        svc.image,
			ExposedPorts: []string{string(svc.port)},
			Env:          svc.env,
			Cmd:          svc.cmd,
			WaitingFor:   svc.wait,
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start %s container: %v", name, err)
	}
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(shutdownCtx)
	})
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("%s container host: %v", name, err)
	}
	port, err := container.MappedPort(ctx, svc.port)
	if err != nil {
		t.Fatalf("%s container port: %v", name, err)
	}
	return host, port.Port()
}

func hostPort(host, port string) string { return net.JoinHostPort(host, port) }
