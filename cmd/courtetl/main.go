// Command courtetl runs court-opinion ETL pipelines. See "courtetl --help".
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"courtetl/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "courtetl: %+v\n", err)
		os.Exit(1)
	}
}
