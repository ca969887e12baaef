// Package all registers every built-in storage backend. Import it for side
// effects:
//
//	import _ "courtetl/internal/storage/all"
//
// which makes the kinds postgres, mysql, mssql and sqlite available to
// storage.New and storage.Mirror.
package all

import (
	_ "courtetl/internal/storage/mssql"
	_ "courtetl/internal/storage/mysql"
	_ "courtetl/internal/storage/postgres"
	_ "courtetl/internal/storage/sqlite"
)
