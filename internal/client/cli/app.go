package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/nosuite/internal/client/client"
	"github.com/dmitrijs2005/nosuite/internal/client/config"
)

// Admin is the server side of the commands.
type Admin interface {
	NfcKey(ctx context.Context) (string, error)
	Start(ctx context.Context, physicalKeyHex string, adminPassword []byte) error
}

type App struct {
	config *config.Config
	admin  Admin
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) (*App, error) {
	if c.ServerURL == "" {
		return nil, fmt.Errorf("server url is required")
	}
	return &App{
		config: c,
		admin:  client.NewAdminClient(c.ServerURL, c.AdminDeviceID, c.Timeout),
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}, nil
}

// Run executes args[0] once when given, or starts the REPL.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		runREPL(ctx, a, bufio.NewScanner(a.reader))
		return nil
	}
	return dispatch(ctx, a, args[0])
}

func dispatch(ctx context.Context, a execIface, cmd string) error {
	switch cmd {
	case "nfc-key":
		return a.NfcKey(ctx)
	case "start":
		return a.Start(ctx)
	case "provision":
		return a.Provision(ctx)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}
