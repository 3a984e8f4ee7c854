package main

import "go-cvseq/cli"

func main() {
	cli.Execute()
}
