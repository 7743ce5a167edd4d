package main

import "github.com/contextcore/recall/cmd/recall/cli"

func main() {
	cli.Execute()
}
