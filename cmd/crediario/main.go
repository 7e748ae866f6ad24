package main

import "github.com/rmachado/crediario/internal/cli"

func main() {
	cli.Execute()
}
