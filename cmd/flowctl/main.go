// Command flowctl is the flow orchestrator CLI.
package main

import "github.com/flowctl/orchestrator/pkg/cli"

func main() {
	cli.Execute()
}
