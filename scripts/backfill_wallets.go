package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

// Creates missing credit wallets for users registered before wallets
// existed and grants each the signup bonus. Run once per environment.
func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	// Connect to database
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	// Test connection
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	fmt.Println("Connected to database")

	bonus := 100
	var configured sql.NullInt64
	if err := db.QueryRow(`SELECT signup_bonus FROM credit_configs LIMIT 1`).Scan(&configured); err == nil && configured.Valid {
		bonus = int(configured.Int64)
	}

	// Step 1: Create wallets for users that have none
	result, err := db.Exec(`
		INSERT INTO credit_wallets (user_id, balance, lifetime_earned, lifetime_spent, created_at, updated_at)
		SELECT u.id, 0, 0, 0, NOW(), NOW()
		FROM users u
		LEFT JOIN credit_wallets w ON w.user_id = u.id
		WHERE w.id IS NULL
	`)
	if err != nil {
		log.Fatal("Failed to create wallets:", err)
	}
	created, _ := result.RowsAffected()
	fmt.Printf("Created %d wallets\n", created)

	// Step 2: Grant the signup bonus to wallets that never received one
	result, err = db.Exec(`
		UPDATE credit_wallets w
		SET balance = balance + $1,
		    lifetime_earned = lifetime_earned + $1,
		    updated_at = NOW()
		WHERE NOT EXISTS (
			SELECT 1 FROM credit_transactions t
			WHERE t.wallet_id = w.id AND t.transaction_type = 'signup_bonus'
		)
	`, bonus)
	if err != nil {
		log.Fatal("Failed to grant bonuses:", err)
	}
	granted, _ := result.RowsAffected()
	fmt.Printf("Granted signup bonus to %d wallets\n", granted)

	// Step 3: Record the ledger entries for the grants
	result, err = db.Exec(`
		INSERT INTO credit_transactions (wallet_id, transaction_type, amount, balance_after, description, created_at)
		SELECT w.id, 'signup_bonus', $1, w.balance, 'Welcome bonus (backfill)', NOW()
		FROM credit_wallets w
		WHERE NOT EXISTS (
			SELECT 1 FROM credit_transactions t
			WHERE t.wallet_id = w.id AND t.transaction_type = 'signup_bonus'
		)
	`, bonus)
	if err != nil {
		log.Fatal("Failed to record transactions:", err)
	}
	recorded, _ := result.RowsAffected()
	fmt.Printf("Recorded %d ledger entries\n", recorded)

	fmt.Println("Backfill complete")
}
