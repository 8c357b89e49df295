package main

import (
	"os"

	"krxflow/cmd/krxflow/commands"
)

func main() {
	os.Exit(commands.Execute())
}
