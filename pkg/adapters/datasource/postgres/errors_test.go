package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
)

func TestInspector_QueryFailureIsRemoteUnavailable(t *testing.T) {
	cfg := &Config{Host: "127.0.0.1", Port: 1, User: "app", Password: "secret", Database: "app", ConnectTimeout: 1}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// pgxpool connects lazily, so the first query is what fails.
	pool, err := pgxpool.New(ctx, buildConnectionString(cfg))
	require.NoError(t, err)
	insp := &Inspector{config: cfg, pool: pool, logger: zaptest.NewLogger(t)}
	defer insp.Close()

	_, err = insp.ListTables(ctx, "public")

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindRemoteUnavailable, appErr.Kind)
	assert.Equal(t, "failed to list tables of public on PostgreSQL app@127.0.0.1:1", appErr.Message)
	assert.Contains(t, appErr.Hint, "DBP_POSTGRES_USER")
	assert.NotContains(t, appErr.Detail, "secret")
}
