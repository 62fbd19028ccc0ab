package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/fraugho/caterpillar-clay/internal/app/api"
)

func main() {
	// Missing .env is fine; production configures through the environment.
	_ = godotenv.Load()

	if err := api.Run(context.Background()); err != nil {
		log.Fatalf("api exited: %v", err)
	}
}
