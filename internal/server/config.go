package server

import "github.com/raysh454/darkscan/internal/logging"

type Config struct {
	// ListenAddr is the HTTP listen address for the API server (the CLI
	// scan and watch commands use the orchestrator in-process and do not
	// require the network).
	ListenAddr string

	Logger logging.Logger
}
