package main

import (
	"github.com/mehtakaran9/gridcall/cmd"
	"github.com/mehtakaran9/gridcall/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}
