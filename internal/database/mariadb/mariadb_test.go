//go:build integration

package mariadb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mariadb:11",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MARIADB_ROOT_PASSWORD": "test",
			"MARIADB_DATABASE":      "photoprism",
		},
		WaitingFor: wait.ForListeningPort("3306/tcp").WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306")
	require.NoError(t, err)

	dsn := fmt.Sprintf("root:test@tcp(%s:%s)/photoprism", host, port.Port())

	var pool *Pool
	require.Eventually(t, func() bool {
		pool, err = NewPool(dsn)
		return err == nil
	}, 60*time.Second, time.Second)

	return pool, func() {
		_ = pool.Close()
		_ = container.Terminate(ctx)
	}
}

func TestPhotos(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	_, err := pool.db.ExecContext(ctx, `
		CREATE TABLE photos (
			id INT AUTO_INCREMENT PRIMARY KEY,
			photo_uid VARBINARY(42) NOT NULL,
			taken_at DATETIME,
			photo_year INT NOT NULL DEFAULT -1,
			photo_lat DOUBLE NOT NULL DEFAULT 0,
			photo_lng DOUBLE NOT NULL DEFAULT 0,
			deleted_at DATETIME NULL
		)`)
	require.NoError(t, err)

	_, err = pool.db.ExecContext(ctx, `
		INSERT INTO photos (photo_uid, taken_at, photo_year, photo_lat, photo_lng, deleted_at) VALUES
			('pq1', '2024-06-01 12:00:00', 2024, 50.087, 14.421, NULL),
			('pq2', '2024-06-01 12:05:00', -1, 0, 0, NULL),
			('pq3', '2024-06-02 08:00:00', 2024, 0, 0, '2024-07-01 00:00:00')`)
	require.NoError(t, err)

	photos, err := pool.Photos(ctx)
	require.NoError(t, err)
	require.Len(t, photos, 3)

	assert.Equal(t, "pq1", photos[0].UID)
	require.NotNil(t, photos[0].TakenAt)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), *photos[0].TakenAt)
	assert.InDelta(t, 50.087, photos[0].Lat, 1e-9)
	assert.False(t, photos[0].Archived)

	assert.Nil(t, photos[1].TakenAt)

	assert.True(t, photos[2].Archived)
}
