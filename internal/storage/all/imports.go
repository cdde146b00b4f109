// Package all wires every built-in storage backend into the storage factory.
//
// Importing it for side effects registers these kinds:
//
//   - "postgres" (COPY via pgx)
//   - "mssql"    (bulk copy via go-mssqldb)
//   - "mysql"    (multi-row INSERTs via go-sql-driver/mysql)
//   - "sqlite"   (transactional INSERTs via modernc.org/sqlite)
//   - "jsonl"    (JSON lines to a file or stdout)
//
// Typical usage:
//
//	import _ "github.com/TheStrul/Sacks-new-sub004/internal/storage/all"
//
//	repo, err := storage.New(ctx, storage.Config{Kind: p.Storage.Kind, ...})
//	if err != nil { ... }
//	defer repo.Close()
//	if p.Storage.DB.AutoCreateTable {
//	    err = storage.EnsureTable(ctx, cfg, repo)
//	}
//
// A binary that needs only a subset can import the backend packages directly.
package all

import (
	_ "github.com/TheStrul/Sacks-new-sub004/internal/storage/jsonl"
	_ "github.com/TheStrul/Sacks-new-sub004/internal/storage/mssql"
	_ "github.com/TheStrul/Sacks-new-sub004/internal/storage/mysql"
	_ "github.com/TheStrul/Sacks-new-sub004/internal/storage/postgres"
	_ "github.com/TheStrul/Sacks-new-sub004/internal/storage/sqlite"
)
