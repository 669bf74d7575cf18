package main

import (
	"os"

	"lantern.fyi/grantmatch/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
