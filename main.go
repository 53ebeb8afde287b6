package main

import (
	"context"
	"os"

	"github.com/z0nyx/Akidzuki-CLI/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
