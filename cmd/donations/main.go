// Command donations runs the donation tracker API and its offline tools.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/tbourn/go-donation-tracker/docs"
	"github.com/tbourn/go-donation-tracker/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
