// Command progressctl is the operator CLI of the progress engine.
package main

import (
	"os"

	"github.com/sqlearn/progress-hub/internal/interface/cli"
)

func main() {
	os.Exit(cli.Execute(cli.NewRootCommand(nil)))
}
