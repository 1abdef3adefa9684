// Package all registers every storage backend. Import it for side effects:
//
//	import _ "fiscaletl/internal/storage/all"
package all

import (
	_ "fiscaletl/internal/storage/duckdb"
	_ "fiscaletl/internal/storage/mssql"
	_ "fiscaletl/internal/storage/postgres"
	_ "fiscaletl/internal/storage/sqlite"
)
