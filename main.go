package main

import (
	"os"

	"github.com/alantheprice/proven/cmd"
	"github.com/alantheprice/proven/pkg/utils"
)

func main() {
	logger := utils.GetLogger()

	err := cmd.Execute()
	if err != nil {
		logger.Logf("Application error: %v", err)
	}
	if cerr := logger.Close(); cerr != nil {
		os.Stderr.WriteString("Error closing logger: " + cerr.Error() + "\n")
	}
	os.Exit(cmd.ExitCode(err))
}
