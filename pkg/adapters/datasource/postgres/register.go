package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/adapters/datasource"
	"github.com/delphix/dlpxdbprofiler/pkg/config"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

func init() {
	datasource.Register(datasource.InspectorRegistration{
		Info: datasource.InspectorInfo{
			Engine:      models.EnginePostgres,
			DisplayName: models.EnginePostgres.DisplayName(),
			Description: "PostgreSQL 12+ via pgx",
		},
		Factory: func(ctx context.Context, db *config.Database, logger *zap.Logger) (datasource.SchemaInspector, error) {
			return NewInspector(ctx, FromDatabase(db), logger)
		},
	})
}
