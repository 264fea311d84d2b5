// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the primary execution lifecycle, decoupled
// from any specific entrypoint like a CLI or server.
//
// An App loads one pipeline, wires the report sinks and the optional artifact
// archive, runs the pipeline through the engine and serves the control API
// while the run is in flight.
package app
