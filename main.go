package main

import "github.com/agentic-research/olxstore/cmd"

func main() {
	cmd.Execute()
}
