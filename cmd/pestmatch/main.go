package main

import "pestmatch/internal/cli"

func main() {
	cli.Execute()
}
