package main

import (
	"log"
	"os"

	"github.com/TFMV/fsjson/cmd"
)

func main() {
	// Standard output carries records; anything logged here goes to stderr.
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Set up a deferred function to recover from panics.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v", r)
			os.Exit(1)
		}
	}()

	// cobra has already printed the error.
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
