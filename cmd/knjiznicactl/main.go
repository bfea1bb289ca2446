package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/erazemk/knjiznica/internal/bootstrap"
	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

const usage = "Usage: knjiznicactl <init|seed> [-db path]"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		cmdInit(os.Args[2:])
	case "seed":
		cmdSeed(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n%s\n", os.Args[1], usage)
		os.Exit(1)
	}
}

func cmdInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dbPath := fs.String("db", "knjiznica.sqlite3", "path to SQLite database file")
	adminUser := fs.String("user", "admin", "admin username")
	fs.Parse(args)

	if _, err := os.Stat(*dbPath); err == nil {
		fmt.Fprintf(os.Stderr, "Error: database file %s already exists\n", *dbPath)
		os.Exit(1)
	}

	database, password, err := bootstrap.InitDatabase(context.Background(), *dbPath, *adminUser)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	database.Close()

	bootstrap.PrintInitResult(*dbPath, *adminUser, password)
}

// seedUsers and seedBooks give a fresh database something to circulate.
var seedUsers = []struct {
	username, password, role string
}{
	{"admin", "Admin1234", model.RoleAdmin},
	{"librarian", "Librarian1", model.RoleLibrarian},
	{"patron", "Patron1234", model.RolePatron},
}

var seedBooks = []struct {
	title, author, category string
	stock                   int
}{
	{"Cien Años de Soledad", "Gabo", "Novela", 5},
	{"Clean Code", "R. Martin", "Tecnología", 2},
}

func cmdSeed(args []string) {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	dbPath := fs.String("db", "knjiznica.sqlite3", "path to SQLite database file")
	fs.Parse(args)

	ctx := context.Background()
	database, err := db.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, u := range seedUsers {
		existing, err := store.GetUserByUsername(ctx, database, u.username)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if existing != nil {
			fmt.Printf("User %s exists, skipped\n", u.username)
			continue
		}
		if _, err := bootstrap.CreateUser(ctx, database, u.username, u.password, u.role); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", u.username, err)
			os.Exit(1)
		}
		fmt.Printf("User %s (%s) created, password %s\n", u.username, u.role, u.password)
	}

	for _, b := range seedBooks {
		book, merged, err := store.ReceiveBook(ctx, database, b.title, b.author, b.category, b.stock)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error receiving %q: %v\n", b.title, err)
			os.Exit(1)
		}
		verb := "added"
		if merged {
			verb = "restocked"
		}
		fmt.Printf("Book %q %s, %d on the shelf\n", book.Title, verb, book.Stock)
	}
}
