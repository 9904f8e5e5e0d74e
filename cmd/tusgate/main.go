// Command tusgate runs a standalone TUS 1.0.0 resumable-upload server.
package main

import (
	"os"

	"github.com/tusgate/tusgate/cmd/tusgate/cli"
)

func main() {
	cli.ParseFlags()

	if cli.Flags.ShowVersion {
		cli.ShowVersion()
		return
	}

	log := cli.NewLogger()

	if err := cli.Serve(log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
