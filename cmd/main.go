package main

import (
	"github.com/host-collector/cmd/agent"
)

func main() {
	agent.Execute()
}
