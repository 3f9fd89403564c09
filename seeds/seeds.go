// Package seeds embeds the fixture data loaded by `videotube seed <name>`.
package seeds

import "embed"

//go:embed *.sql
var Files embed.FS
