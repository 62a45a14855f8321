package main

import (
	"os"

	"github.com/ryanhamamura/front/cmd/front/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
