// Package all links every schema inspector into the binary. Importing it
// registers the Oracle, SQL Server, PostgreSQL and MySQL engines.
package all

import (
	_ "github.com/delphix/dlpxdbprofiler/pkg/adapters/datasource/mssql"
	_ "github.com/delphix/dlpxdbprofiler/pkg/adapters/datasource/mysql"
	_ "github.com/delphix/dlpxdbprofiler/pkg/adapters/datasource/oracle"
	_ "github.com/delphix/dlpxdbprofiler/pkg/adapters/datasource/postgres"
)
