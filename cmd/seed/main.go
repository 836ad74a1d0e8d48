package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/nvijayanand79/tracklite-sub001/internal/enum"
	"github.com/nvijayanand79/tracklite-sub001/internal/store"
)

func main() {
	// CLI flags
	email := flag.String("email", "", "Admin email address")
	password := flag.String("password", "", "Admin password")
	name := flag.String("name", "", "Admin full name")
	dbPath := flag.String("db", "", "Path to the SQLite database file")
	flag.Parse()

	// Fall back to environment variables
	if *email == "" {
		*email = os.Getenv("SEED_EMAIL")
	}
	if *password == "" {
		*password = os.Getenv("SEED_PASSWORD")
	}
	if *name == "" {
		*name = os.Getenv("SEED_NAME")
	}
	if *dbPath == "" {
		*dbPath = os.Getenv("DATABASE_PATH")
	}

	// Fall back to defaults
	if *email == "" {
		*email = "admin@example.com"
	}
	if *password == "" {
		*password = "admin123"
		log.Println("WARNING: Using default password 'admin123'. Change immediately in production!")
	}
	if *name == "" {
		*name = "Default Admin"
	}
	if *dbPath == "" {
		*dbPath = "tracelite.db"
	}

	db, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("Unable to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}

	if err := store.Migrate(db); err != nil {
		log.Fatalf("Unable to run migrations: %v", err)
	}
	log.Printf("Database ready at %s", *dbPath)

	st := store.New(db)

	if _, err := st.GetUserByEmail(ctx, *email); err == nil {
		log.Printf("Admin %s already exists, nothing to do", *email)
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		log.Fatalf("Unable to check existing admin: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Unable to hash password: %v", err)
	}

	user, err := st.CreateUser(ctx, store.CreateUserParams{
		Email:          *email,
		HashedPassword: string(hash),
		FullName:       *name,
		Role:           enum.RoleAdmin,
	})
	if err != nil {
		log.Fatalf("Unable to create admin: %v", err)
	}

	log.Printf("Seeded admin %s (%s)", user.Email, user.ID)
}
