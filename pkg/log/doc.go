/*
Package log provides structured logging for poanet using zerolog.

A single package-level Logger is configured once by Init and shared by every
package. Child loggers add the fields lifecycle code filters on:

	log.WithComponent("manager")        component=manager
	log.WithNetwork("testnet")          network=testnet
	log.WithNode("testnet", "signer1")  network=testnet node=signer1

# Usage

	import "github.com/cuemby/poanet/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: false,
	})

	logger := log.WithNode("testnet", "signer1")
	logger.Info().Str("op_id", opID).Msg("Adding node")

Console output uses RFC3339 timestamps; JSON output is one object per line.
Output defaults to stderr so command output on stdout stays parseable.

# Levels

	debug  external command lines, poll iterations
	info   lifecycle steps
	warn   best-effort teardown failures, roster/manifest drift
	error  failed lifecycle operations
*/
package log
