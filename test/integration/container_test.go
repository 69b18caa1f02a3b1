package integration

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	pgImage    = "postgres:16-alpine"
	pgUser     = "healthmetrics"
	pgPassword = "healthmetrics"
	pgDatabase = "healthmetrics_test"
)

// pgContainer is a disposable Postgres started through the docker CLI for
// HEALTHMETRICS_TEST_DOCKER=1 runs.
type pgContainer struct {
	id  string
	url string
}

func startPostgresContainer(ctx context.Context) (string, func(), error) {
	port, err := freeLocalPort()
	if err != nil {
		return "", nil, err
	}
	c, err := runPostgres(ctx, port)
	if err != nil {
		return "", nil, err
	}
	if err := c.awaitReady(ctx, 30*time.Second); err != nil {
		c.remove()
		return "", nil, err
	}
	return c.url, c.remove, nil
}

func runPostgres(ctx context.Context, port int) (*pgContainer, error) {
	args := []string{
		"run", "--detach", "--rm",
		"--publish", fmt.Sprintf("127.0.0.1:%d:5432", port),
		"--env", "POSTGRES_USER=" + pgUser,
		"--env", "POSTGRES_PASSWORD=" + pgPassword,
		"--env", "POSTGRES_DB=" + pgDatabase,
		pgImage,
	}
	out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("docker run %s: %w: %s", pgImage, err, strings.TrimSpace(string(out)))
	}
	return &pgContainer{
		id:  strings.TrimSpace(string(out)),
		url: fmt.Sprintf("postgres://%s:%s@127.0.0.1:%d/%s?sslmode=disable", pgUser, pgPassword, port, pgDatabase),
	}, nil
}

func (c *pgContainer) remove() {
	_ = exec.Command("docker", "rm", "--force", c.id).Run()
}

// awaitReady retries SELECT 1 until it succeeds. The image restarts the
// server once after init.
func (c *pgContainer) awaitReady(ctx context.Context, limit time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	var lastErr error
	tick := time.NewTicker(250 * time.Millisecond)
	defer tick.Stop()
	for {
		if lastErr = c.ping(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Join(fmt.Errorf("postgres %s not ready within %v", c.id, limit), lastErr)
		case <-tick.C:
		}
	}
}

func (c *pgContainer) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	conn, err := pgx.Connect(ctx, c.url)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())
	var one int
	return conn.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func freeLocalPort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("reserve port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
