package main

import (
	"github.com/ambrook/skirmishd/internal/cli"
)

func main() {
	cli.Execute()
}
