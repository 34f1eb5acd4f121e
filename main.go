package main

import "github.com/agentic-research/twbgraph/cmd"

func main() {
	cmd.Execute()
}
