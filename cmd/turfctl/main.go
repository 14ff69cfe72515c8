package main

import (
	"fmt"
	"os"

	"github.com/prohmpiriya/turf-booking/internal/cli"
	"github.com/prohmpiriya/turf-booking/pkg/logger"
)

func main() {
	err := cli.NewRoot(nil).Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
