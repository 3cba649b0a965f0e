package main

import (
	"b3-alerts/internal/cli"
)

func main() {
	cli.Execute()
}
