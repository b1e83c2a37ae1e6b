package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jpch89/the5fire-Django/internal/common/database"
	"github.com/jpch89/the5fire-Django/internal/config"
	"github.com/jpch89/the5fire-Django/internal/migrations"
)

func main() {
	cfg := config.Load("")

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer database.Close(db)

	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := migrations.Up(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	fmt.Println("✅ Migration completed successfully!")
}
