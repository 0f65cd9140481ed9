// Package cli provides the pagelayer command line.
// It exports Run() and RunWithHooks() so wrapper projects can add commands.
package cli

import (
	"fmt"
	"os"
)

// Version is the release of the engine.
const Version = "0.1.0"

// Hooks allows extending the CLI with additional commands.
type Hooks struct {
	// BeforeDispatch is called before command dispatch.
	// Return (handled=true, exitCode) to skip normal dispatch.
	BeforeDispatch func(command string, args []string) (handled bool, exitCode int)

	// CustomHelp returns additional help text to append.
	CustomHelp func() string

	// CustomVersion returns version info to append (optional).
	CustomVersion func() string
}

// Run executes the CLI with the given arguments and returns the exit code.
func Run(args []string) int {
	return RunWithHooks(args, nil)
}

// RunWithHooks executes the CLI with extension hooks.
func RunWithHooks(args []string, hooks *Hooks) int {
	if len(args) < 1 {
		return runServe(args)
	}
	command, cmdArgs := args[0], args[1:]

	if hooks != nil && hooks.BeforeDispatch != nil {
		if handled, code := hooks.BeforeDispatch(command, cmdArgs); handled {
			return code
		}
	}

	switch command {
	case "serve":
		return runServe(cmdArgs)
	case "mcp":
		return runMCP(cmdArgs)
	case "script":
		return runScript(cmdArgs)
	case "export":
		return runExport(cmdArgs)
	case "send":
		return runSend(cmdArgs)
	case "bundle":
		return runBundle(cmdArgs)
	case "help", "-h", "--help":
		printHelp(hooks)
		return 0
	case "version", "--version":
		printVersion(hooks)
		return 0
	default:
		if command[0] == '-' {
			return runServe(args)
		}
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printHelp(hooks)
		return 1
	}
}

func printHelp(hooks *Hooks) {
	fmt.Println(`Page layer editor

Usage: pagelayer [command] [options] [arguments]

Commands:
  serve                 Start the editor server (default)
  mcp                   Serve MCP tools on stdio for one session, plus the HTTP server
  script FILE [PAGE]    Run a Lua script against the stored document and save it
  export [PAGE]         Print stored layer lists as JSON
  send SESSION JSON...  Send messages to a running server and print the page state
  bundle SITE OUTPUT    Write a copy of this binary that serves SITE as its front end
  help                  Show this help
  version               Show the version

Options:
  -config FILE          TOML configuration (default: config/config.toml)
  -host, -port          Listen address (default: 127.0.0.1:8080)
  -dir DIR              Serve the editor front end from DIR
  -storage TYPE         memory, sqlite or postgresql
  -storage-path FILE    SQLite database
  -storage-url URL      PostgreSQL connection URL
  -history-limit N      Undo steps kept per page (default: 50)
  -legacy-drag          Ignore page rotation when dragging
  -lua-path DIR         Lua script directory (default: lua/)
  -no-lua               Disable scripting
  -session-timeout D    Idle session expiration (default: 24h, 0 = never)
  -log-level LEVEL      debug, info, warn, error
  -log-file FILE        Write logs to FILE instead of stderr
  -v, -vv, -vvv         Verbosity

Environment variables PAGELAYER_HOST, PAGELAYER_PORT, PAGELAYER_STORAGE, ...
override the configuration file; flags override both.

Examples:
  pagelayer serve -port 9000 -dir web/
  pagelayer script -storage sqlite -storage-path doc.db lua/title.lua 2
  pagelayer export -storage sqlite -storage-path doc.db 1
  pagelayer send new '{"type":"add","data":{"kind":"text"}}'`)

	if hooks != nil && hooks.CustomHelp != nil {
		fmt.Println(hooks.CustomHelp())
	}
}

func printVersion(hooks *Hooks) {
	fmt.Println("pagelayer v" + Version)
	if hooks != nil && hooks.CustomVersion != nil {
		fmt.Println(hooks.CustomVersion())
	}
}
