package oracle

import (
	"context"

	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/adapters/datasource"
	"github.com/delphix/dlpxdbprofiler/pkg/config"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

func init() {
	description := "Oracle 11g+ via go-ora (thin)"
	if ThickAvailable {
		description += " or godror (thick)"
	}
	datasource.Register(datasource.InspectorRegistration{
		Info: datasource.InspectorInfo{
			Engine:      models.EngineOracle,
			DisplayName: models.EngineOracle.DisplayName(),
			Description: description,
		},
		Factory: func(ctx context.Context, db *config.Database, logger *zap.Logger) (datasource.SchemaInspector, error) {
			return NewInspector(ctx, FromDatabase(db), logger)
		},
	})
}
