package main

import (
	"log"

	"github.com/joho/godotenv"
)

func main() {
	// A local .env is optional; INV_* variables may come from the environment
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	Execute()
}
