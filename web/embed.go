// Package web holds the embedded HTML templates and static assets served by
// the frontend.
package web

import "embed"

//go:embed templates static
var FS embed.FS
