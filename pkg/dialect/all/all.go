// Package all registers every built-in dialect.
//
// It exists for its side effects only:
//
//	import _ "querykit/pkg/dialect/all"
//
// after which dialect.Get accepts mysql, pgsql, sqlsrv, sqlite and oci (and
// their aliases). A binary that needs a subset can import the individual
// dialect packages instead.
package all

import (
	_ "querykit/pkg/dialect/mysql"
	_ "querykit/pkg/dialect/oracle"
	_ "querykit/pkg/dialect/postgres"
	_ "querykit/pkg/dialect/sqlite"
	_ "querykit/pkg/dialect/sqlserver"
)
