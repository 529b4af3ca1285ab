// Package all wires every built-in storage backend into the storage factory.
//
// Importing it for side effects registers these kinds (aliases resolve
// through the dialect registry):
//
//   - "mysql"  (also mariadb)
//   - "pgsql"  (also postgres, postgresql, pgx)
//   - "sqlsrv" (also sqlserver, mssql)
//   - "sqlite" (also sqlite3)
//   - "oci"    (also oracle, ora)
//
// Binaries that need only a subset can import the backend packages directly.
package all

import (
	_ "querykit/internal/storage/mssql"
	_ "querykit/internal/storage/mysql"
	_ "querykit/internal/storage/oracle"
	_ "querykit/internal/storage/postgres"
	_ "querykit/internal/storage/sqlite"
)
