package main

import "github.com/LENAX/agentflow/pkg/cli/cmd"

func main() {
	cmd.Execute()
}
