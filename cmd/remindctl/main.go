package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/Slimo300/Session-Reminder-Serverless-Go/cmd"
)

func main() {
	// Flags default to environment variables, so .env has to be loaded before they are built.
	_ = godotenv.Load()

	if err := cmd.RootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
