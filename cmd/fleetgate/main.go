package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aryankumar/fleetgate/internal/cli"
	"github.com/aryankumar/fleetgate/internal/util"
)

func main() {
	// Cancelled on SIGINT/SIGTERM so serve can drain
	ctx := util.SetupSignalHandler(slog.Default())

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", util.FriendlyError(err))
		os.Exit(1)
	}
}
