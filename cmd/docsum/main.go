package main

import (
	"os"

	"docsum/internal/apperr"
)

func main() {
	if err := execute(); err != nil {
		os.Exit(apperr.ExitCode(err))
	}
}
