package web

import "embed"

// DistFS holds the console UI served at /_ui/.
//
//go:embed all:dist
var DistFS embed.FS
