package main

import (
	"os"

	"github.com/ebaygate/ebaygate/internal/cli"
)

func main() {
	cli.InitCLI()
	os.Exit(cli.ExecuteWithErrorCode(os.Args[1:]))
}
