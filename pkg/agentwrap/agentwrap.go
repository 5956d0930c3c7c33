// Package agentwrap provides the public API for embedding the tool-call
// bridge. This is the stable API for external consumers.
package agentwrap

import (
	"github.com/agentwrap/agentwrap/internal/app"
	"github.com/agentwrap/agentwrap/internal/config"
)

// App is the main entry point for running the bridge service.
// See internal/app.App for full documentation.
type App = app.App

// Option is a functional option for configuring an App.
type Option = app.Option

// Config is the service configuration document.
type Config = config.Config

// New creates a new App with the given options.
// Example:
//
//	a, err := agentwrap.New(
//	    agentwrap.WithConfigFile("config.yaml"),
//	)
var New = app.New

// Configuration options
var (
	// Config sources
	WithConfig     = app.WithConfig
	WithConfigFile = app.WithConfigFile

	// Advanced options
	WithLogger = app.WithLogger
	WithRunner = app.WithRunner
)
