package main

import "github.com/dyike/PainRadar/internal/cli"

func main() {
	cli.Run()
}
