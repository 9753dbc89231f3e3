// Package web holds the page templates and static assets compiled into the
// binary.
package web

import "embed"

// TemplatesFS holds the layout, shared partials and one file per page.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the notification script.
//
//go:embed static/*
var StaticFS embed.FS
