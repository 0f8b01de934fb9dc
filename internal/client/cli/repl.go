package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) error
	Get(ctx context.Context, endpoint string) error
	Upload(ctx context.Context, endpoint, field, path string) error
}

// runREPL reads commands line by line from reader and dispatches them to a.
// The prompt shows statusFn(). The loop ends on EOF or "exit" / "quit".
//
// Prompts issued by the handlers read from the same reader, so no input is
// lost between the loop and the handlers.
//
// Errors returned by handlers are ignored here; handlers report their own.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("certhub %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, get <endpoint>, upload <endpoint> <field> <path>, logout, exit")
			} else {
				printlnFn("Available commands: register, login, get <endpoint>, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "whoami":
			_ = a.Whoami(ctx)

		case "get":
			if len(args) != 1 {
				printlnFn("Usage: get <endpoint>")
				continue
			}
			_ = a.Get(ctx, args[0])

		case "upload":
			if len(args) != 3 {
				printlnFn("Usage: upload <endpoint> <field> <path>")
				continue
			}
			_ = a.Upload(ctx, args[0], args[1], args[2])

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
