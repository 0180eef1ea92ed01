// Command darkscan detects dark patterns on web pages.
// Usage: darkscan <scan|watch|serve|history|settings> [flags]
package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/raysh454/darkscan/internal/cli"
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		log.Printf("could not load %s: %v", envFile, err)
	}

	os.Exit(cli.Execute(context.Background()))
}
