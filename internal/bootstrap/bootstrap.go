// Package bootstrap creates fresh library databases and their first admin.
package bootstrap

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// PasswordLength is the length of generated admin passwords.
const PasswordLength = 16

// InitDatabase creates the database at path, applies the schema and creates
// an admin with a generated password. On failure the file is removed.
func InitDatabase(ctx context.Context, path, adminUsername string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}

	fail := func(err error) (*sql.DB, string, error) {
		database.Close()
		os.Remove(path)
		return nil, "", err
	}

	if err := db.Migrate(database); err != nil {
		return fail(fmt.Errorf("running migrations: %w", err))
	}

	password, err := GeneratePassword(PasswordLength)
	if err != nil {
		return fail(fmt.Errorf("generating password: %w", err))
	}

	if _, err := CreateUser(ctx, database, adminUsername, password, model.RoleAdmin); err != nil {
		return fail(fmt.Errorf("creating admin user: %w", err))
	}

	if err := store.SetSetting(ctx, database, store.SettingInitialized, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fail(fmt.Errorf("recording initialization: %w", err))
	}

	return database, password, nil
}

// CreateUser hashes password and stores a new account.
func CreateUser(ctx context.Context, database *sql.DB, username, password, role string) (*model.User, error) {
	if err := model.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	return store.CreateUser(ctx, database, username, string(hash), role)
}

// GeneratePassword creates a random password of the given length that
// satisfies the password policy.
func GeneratePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for {
		for i := range result {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
			if err != nil {
				return "", err
			}
			result[i] = charset[n.Int64()]
		}
		if model.ValidatePassword(string(result)) == nil {
			return string(result), nil
		}
	}
}

// PrintInitResult prints the database initialization result to stdout.
func PrintInitResult(dbPath, username, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema initialized.")
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
}
