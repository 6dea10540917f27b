package main

import "github.com/diskd-ai/ccbox/internal/cli"

func main() {
	cli.Execute()
}
