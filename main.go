package main

import (
	"os"

	"github.com/conneroisu/scaffold/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
