package datasource

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/config"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

// InspectorInfo describes a registered engine for help output.
type InspectorInfo struct {
	Engine      models.EngineType `json:"engine"`
	DisplayName string            `json:"display_name"`
	Description string            `json:"description"`
}

// InspectorFactoryFunc opens an inspector for the engine's section of db.
type InspectorFactoryFunc func(ctx context.Context, db *config.Database, logger *zap.Logger) (SchemaInspector, error)

// InspectorRegistration contains info + the factory for one engine.
type InspectorRegistration struct {
	Info    InspectorInfo
	Factory InspectorFactoryFunc
}

var (
	registryMu sync.RWMutex
	registry   = make(map[models.EngineType]InspectorRegistration)
)

// Register is called by each engine package's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg InspectorRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Engine] = reg
}

// RegisteredEngines returns info for all registered engines, sorted by engine name.
func RegisteredEngines() []InspectorInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]InspectorInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Engine < result[j].Engine })
	return result
}

// GetInspectorFactory returns the factory for an engine.
// Returns nil if the engine is not registered.
func GetInspectorFactory(engine models.EngineType) InspectorFactoryFunc {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[engine]; ok {
		return reg.Factory
	}
	return nil
}

// IsRegistered checks if an engine is available.
func IsRegistered(engine models.EngineType) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[engine]
	return ok
}
