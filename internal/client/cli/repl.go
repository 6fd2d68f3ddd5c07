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
	NfcKey(ctx context.Context) error
	Start(ctx context.Context) error
	Provision(ctx context.Context) error
}

// runREPL reads commands line by line until EOF or "exit" / "quit".
//
//	help       show available commands
//	nfc-key    print a fresh physical key URL
//	start      unlock the server
//	provision  compute the admin verification value
//
// Command errors are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, scanner *bufio.Scanner) {
	for {
		printlnFn("nosuite-admin> ")
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			printlnFn("Available commands: nfc-key, start, provision, exit")

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			if err := dispatch(ctx, a, cmd); err != nil {
				printlnFn("Error:", err)
			}
		}
	}
}
