package main

import (
	"abc-inventory-alerts/internal/cli"
)

func main() {
	cli.Execute()
}
