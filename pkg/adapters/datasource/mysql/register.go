package mysql

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
			Engine:      models.EngineMySQL,
			DisplayName: models.EngineMySQL.DisplayName(),
			Description: "MySQL 8+ (the configured database is the only schema)",
		},
		Factory: func(ctx context.Context, db *config.Database, logger *zap.Logger) (datasource.SchemaInspector, error) {
			return NewInspector(ctx, FromDatabase(db), logger)
		},
	})
}
