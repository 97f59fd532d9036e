package main

import (
	"database/sql"
	"flag"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/cuemby/hutch/migrations"
)

var databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags)

	command := "up"
	if args := flag.Args(); len(args) > 0 {
		command = args[0]
	}
	if *databaseURL == "" {
		log.Fatal("Set --database-url or DATABASE_URL")
	}

	db, err := sql.Open("pgx", *databaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to reach database: %v", err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("Failed to set dialect: %v", err)
	}

	switch command {
	case "up":
		err = goose.Up(db, ".")
	case "down":
		err = goose.Down(db, ".")
	case "status":
		err = goose.Status(db, ".")
	case "version":
		err = goose.Version(db, ".")
	default:
		log.Fatalf("Unknown command %q (want up, down, status, or version)", command)
	}
	if err != nil {
		log.Fatalf("Migration %s failed: %v", command, err)
	}
	log.Printf("✓ %s complete", command)
}
