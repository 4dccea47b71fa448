package main

import "github.com/retisctl/arc/pkg/cli"

func main() {
	cli.Execute()
}
