package main

import (
	"os"

	"github.com/gigapi/gigapi-lakehouse/cli"
)

func main() {
	os.Exit(cli.Execute())
}
