// Package testutil provides shared test helpers.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// StartPostgres runs a throwaway Postgres container and returns its DSN.
// The container is removed when the test finishes. Tests calling this skip
// when Docker is not available.
func StartPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := runContainer(ctx)
	if err != nil {
		t.Skipf("skipping: could not start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	return dsn
}

// runContainer converts provider-detection panics into errors: with no
// Docker socket present at all, testcontainers panics before Run can return
// one, and the caller must still be able to skip.
func runContainer(ctx context.Context) (container *tcpostgres.PostgresContainer, err error) {
	defer func() {
		if r := recover(); r != nil {
			container, err = nil, fmt.Errorf("docker unavailable: %v", r)
		}
	}()

	return tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
}
