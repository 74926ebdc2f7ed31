package main

import "github.com/ppiankov/journeywatch/internal/cli"

func main() {
	cli.Execute()
}
