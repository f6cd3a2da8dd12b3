// Package web embeds the wizard page templates and its static assets.
package web

import "embed"

// TemplatesFS holds index.html and the wizard partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds app.js and style.css, served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
