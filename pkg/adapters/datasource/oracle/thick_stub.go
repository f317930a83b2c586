//go:build !godror

package oracle

import (
	"database/sql"

	"github.com/delphix/dlpxdbprofiler/pkg/apperrors"
)

// ThickAvailable reports whether the Instant Client driver is compiled in.
const ThickAvailable = false

func openThick(*Config) (*sql.DB, error) {
	return nil, &apperrors.Error{
		Kind:    apperrors.KindConfiguration,
		Op:      "oracle.NewInspector",
		Message: "Oracle thick driver mode is not compiled in (build with -tags godror)",
		Hint:    "set DBP_ORACLE_DRIVER_MODE=thin to use the pure-Go driver",
	}
}
