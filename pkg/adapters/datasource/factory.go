package datasource

import (
	"context"

	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/config"
)

// InspectorFactory creates schema inspectors from the registry.
type InspectorFactory interface {
	// NewInspector opens an inspector for the engine selected in db.
	NewInspector(ctx context.Context, db *config.Database) (SchemaInspector, error)

	// ListEngines returns info for all registered engines.
	ListEngines() []InspectorInfo
}

type registryFactory struct {
	logger *zap.Logger
}

// NewInspectorFactory returns a factory that uses the global registry.
func NewInspectorFactory(logger *zap.Logger) InspectorFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &registryFactory{logger: logger}
}

func (f *registryFactory) NewInspector(ctx context.Context, db *config.Database) (SchemaInspector, error) {
	engine := db.EngineType()
	factory := GetInspectorFactory(engine)
	if factory == nil {
		return nil, apperrors.Configuration("datasource.NewInspector", "unsupported database engine: %s (not compiled in)", db.Engine)
	}
	return factory(ctx, db, f.logger.Named("inspector").With(zap.String("engine", string(engine))))
}

func (f *registryFactory) ListEngines() []InspectorInfo {
	return RegisteredEngines()
}
