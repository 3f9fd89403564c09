// Package migrations embeds the schema migrations applied by `videotube migrate`.
package migrations

import "embed"

// Files holds the ordered NNNN_name.sql migrations.
//
//go:embed *.sql
var Files embed.FS
