package main

import (
	"log"

	"housing-chat/internal/app"
	"housing-chat/internal/domain/party"
)

func main() {
	if err := app.Run(party.TypeResident); err != nil {
		log.Fatalf("resident chat service exited: %v", err)
	}
}
