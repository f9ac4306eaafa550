package main

import (
	"log"

	"housing-chat/internal/app"
	"housing-chat/internal/domain/party"
)

func main() {
	if err := app.Run(party.TypeManager); err != nil {
		log.Fatalf("manager chat service exited: %v", err)
	}
}
