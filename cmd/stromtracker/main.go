package main

import "github.com/HossEz/stromtracker/internal/cli"

func main() {
	cli.Execute()
}
