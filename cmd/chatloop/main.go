package main

import "github.com/hupe1980/chatloop/internal/cli"

func main() {
	cli.Run()
}
