package oracle

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/delphix/dlpxdbprofiler/pkg/adapters/datasource"
	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
	"github.com/delphix/dlpxdbprofiler/pkg/models"
)

var queries = datasource.Queries{
	Schemas: `SELECT DISTINCT OWNER FROM ALL_TABLES ORDER BY OWNER`,
	Tables:  `SELECT TABLE_NAME FROM ALL_TABLES WHERE OWNER = :1 ORDER BY TABLE_NAME`,
}

// systemSchemas are owners shipped with the database or its sample schemas.
var systemSchemas = map[string]struct{}{
	"ANONYMOUS": {}, "APEX_040000": {}, "APEX_040200": {}, "APEX_050000": {}, "APEX_050100": {},
	"APEX_PUBLIC_USER": {}, "APPQOSSYS": {}, "AUDSYS": {}, "CTXSYS": {}, "DBSNMP": {},
	"DIP": {}, "DVF": {}, "DVSYS": {}, "EXFSYS": {}, "FLOWS_FILES": {},
	"GSMADMIN_INTERNAL": {}, "GSMCATUSER": {}, "GSMUSER": {}, "HR": {}, "IX": {},
	"LBACSYS": {}, "MDDATA": {}, "MDSYS": {}, "OE": {}, "OLAPSYS": {},
	"ORACLE_OCM": {}, "ORDDATA": {}, "ORDPLUGINS": {}, "ORDSYS": {}, "OUTLN": {},
	"OWBSYS": {}, "PM": {}, "SCOTT": {}, "SH": {}, "SI_INFORMTN_SCHEMA": {},
	"SPATIAL_CSW_ADMIN_USR": {}, "SPATIAL_WFS_ADMIN_USR": {}, "SYS": {}, "SYSBACKUP": {}, "SYSDG": {},
	"SYSKM": {}, "SYSMAN": {}, "SYSTEM": {}, "WKPROXY": {}, "WKSYS": {},
	"WK_TEST": {}, "WMSYS": {}, "XDB": {}, "XS$NULL": {}, "OPS$ORACLE": {},
}

// IsUserSchema reports whether owner is not a system schema.
func IsUserSchema(owner string) bool {
	_, system := systemSchemas[owner]
	return !system
}

// NewInspector opens an Oracle connection in the configured driver mode and verifies it.
func NewInspector(ctx context.Context, cfg *Config, logger *zap.Logger) (*datasource.SQLInspector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Configuration("oracle.NewInspector", "invalid Oracle settings: %v", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		db  *sql.DB
		err error
	)
	if cfg.DriverMode == ModeThick {
		db, err = openThick(cfg)
	} else {
		db, err = openThin(cfg)
	}
	if apperrors.IsKind(err, apperrors.KindConfiguration) {
		return nil, err
	}
	if err != nil {
		return nil, datasource.ConnectError(models.EngineOracle, cfg.User, cfg.Host, cfg.Port, fmt.Errorf("open: %w", err))
	}

	endpoint := datasource.Endpoint{Engine: models.EngineOracle, User: cfg.User, Host: cfg.Host, Port: cfg.Port}
	insp := datasource.NewSQLInspector(db, queries, endpoint, logger)
	insp.Filter = IsUserSchema
	if err := insp.TestConnection(ctx); err != nil {
		db.Close()
		return nil, datasource.ConnectError(models.EngineOracle, cfg.User, cfg.Host, cfg.Port, err)
	}

	logger.Info("Connected to Oracle",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("sid", cfg.SID),
		zap.String("service_name", cfg.ServiceName),
		zap.String("driver_mode", cfg.DriverMode))
	return insp, nil
}
