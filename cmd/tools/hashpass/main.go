package main

import (
	"flag"
	"fmt"
	"log"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// hashpass prints a bcrypt hash accepted by the users table, for seeding
// accounts by hand.
func main() {
	cost := flag.Int("cost", bcrypt.DefaultCost, "bcrypt cost (4..31)")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: go run ./cmd/tools/hashpass [-cost n] <password>")
	}
	password := flag.Arg(0)
	if utf8.RuneCountInString(password) < 8 {
		log.Fatal("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), *cost)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(string(hash))
}
