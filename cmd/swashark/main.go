package main

import (
	"context"
	"os"

	"swashark/internal/cli"
)

func main() {
	os.Exit(cli.Run(context.Background(), os.Args[1:]))
}
