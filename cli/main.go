// Command caucusctl drives a caucus server from the terminal.
package main

import (
	"os"

	"github.com/xiaot623/caucus/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
