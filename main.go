package main

import (
	"os"

	"github.com/prohelper/prohelper-web/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
