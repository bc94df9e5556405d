package main

import (
	"os"

	"github.com/conneroisu/reportsmith/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
