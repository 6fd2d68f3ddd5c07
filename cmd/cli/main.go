package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/nosuite/internal/client/cli"
	"github.com/dmitrijs2005/nosuite/internal/client/config"
	"github.com/dmitrijs2005/nosuite/internal/flagx"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	if err := app.Run(ctx, flagx.Positional(os.Args[1:], config.ValueFlags)); err != nil {
		log.Fatalf("%v", err)
	}

}
