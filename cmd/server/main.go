package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/nvijayanand79/tracklite-sub001/internal/auth"
	"github.com/nvijayanand79/tracklite-sub001/internal/config"
	"github.com/nvijayanand79/tracklite-sub001/internal/enum"
	"github.com/nvijayanand79/tracklite-sub001/internal/router"
	"github.com/nvijayanand79/tracklite-sub001/internal/store"
	"github.com/nvijayanand79/tracklite-sub001/internal/ws"
)

func main() {
	cfg := config.Load()

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Unable to open database: %v", err)
	}
	defer db.Close()

	if err := store.Migrate(db); err != nil {
		log.Fatalf("Unable to run migrations: %v", err)
	}
	log.Printf("Database ready at %s", cfg.DatabasePath)

	st := store.New(db)

	if cfg.AppEnv == "dev" {
		if err := ensureDefaultAdmin(context.Background(), st); err != nil {
			log.Fatalf("Unable to seed default admin: %v", err)
		}
	}

	hub := ws.NewHub()
	go hub.Run()

	otp := auth.NewOTPStore(cfg.OTPDevCode)

	r := router.New(cfg, db, st, otp, hub)

	log.Printf("Starting server on :%s", cfg.Port)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), r); err != nil {
		log.Fatal(err)
	}
}

// ensureDefaultAdmin creates the dev login when the users table is empty.
func ensureDefaultAdmin(ctx context.Context, st *store.Store) error {
	const email = "admin@example.com"

	if _, err := st.GetUserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if _, err := st.CreateUser(ctx, store.CreateUserParams{
		Email:          email,
		HashedPassword: string(hash),
		FullName:       "Default Admin",
		Role:           enum.RoleAdmin,
	}); err != nil {
		return err
	}

	log.Printf("Seeded default admin %s (password: admin123)", email)
	return nil
}
