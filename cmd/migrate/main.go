package main

import (
	"log"

	"housing-chat/config"
	"housing-chat/internal/domain/chat"
	"housing-chat/internal/domain/party"
	"housing-chat/pkg/database"
)

func main() {
	cfg := config.LoadConfig()

	database.Connect(cfg)

	if err := database.DB.AutoMigrate(
		&party.Resident{},
		&party.Manager{},
		&party.House{},
		&chat.Conversation{},
		&chat.Member{},
		&chat.Message{},
	); err != nil {
		log.Fatalf("Failed to apply GORM migrations: %v", err)
	}

	log.Println("Migrations applied")
}
