package main

import (
	"github.com/GZancewicz/web-conference/cmd/conference/cmd"
	"github.com/GZancewicz/web-conference/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
