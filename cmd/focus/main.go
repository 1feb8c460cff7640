// Command focus is a pomodoro timer with an Eisenhower task matrix.
package main

import (
	"github.com/joho/godotenv"

	"github.com/berth-dev/focus/internal/cli"
)

func main() {
	// A missing .env is the common case.
	_ = godotenv.Load()
	cli.Execute()
}
