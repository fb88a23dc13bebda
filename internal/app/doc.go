// Package app wires the shared startup of the pipeline binaries:
// configuration loading, the process logger, the data directory layout,
// and telemetry.
//
// # Initialization Flow
//
// Every binary runs the same sequence:
//
//	1. Load configuration from defaults, config file, and environment
//	2. Initialize the global slog logger
//	3. Create the data directories
//	4. Initialize telemetry (no-op providers when disabled)
//
// # Usage
//
// The main entry point is typically:
//
//	a, err := app.New("processor")
//	if err != nil {
//	    slog.Error("startup failed", slog.String("error", err.Error()))
//	    os.Exit(1)
//	}
//	ctx, cancel := a.Context()
//	defer cancel()
//	defer a.Shutdown(context.Background())
//
// The context from Context carries the run ID and is cancelled on
// SIGINT and SIGTERM, so batch loops stop at the next file boundary.
//
// # Error Handling
//
// Initialization errors are returned to the caller. The package never
// calls os.Exit itself; exit codes stay under main's control.
package app
