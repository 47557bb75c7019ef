package main

import (
	"fmt"
	"os"

	"github.com/zurustar/tunesync/pkg/app"
)

func main() {
	application := app.New(os.Stdout, os.Stderr)
	if err := application.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
