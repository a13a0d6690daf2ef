package main

import (
	"fmt"
	"os"

	"github.com/rwp0/Cor/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	// Commands print their own reports; main surfaces the error once
	// and maps it to an exit code.
	cmd.SilenceErrors = true
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
