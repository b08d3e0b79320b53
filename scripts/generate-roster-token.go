// Package main is a development utility for generating a roster sync token
// with its bcrypt hash pre-computed. It prints the raw token (to give the
// roster source system) and the hash (to put in auth.roster_token_hash or the
// CHRV_AUTH_ROSTER_TOKEN_HASH environment variable). Do not reuse generated
// tokens across environments.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	randomBytes := make([]byte, 32)
	_, err := rand.Read(randomBytes)
	if err != nil {
		log.Fatal(err)
	}

	token := "rst_" + base64.RawURLEncoding.EncodeToString(randomBytes)

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(token), 10)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("==========================================================")
	fmt.Println("Roster Sync Token Generated")
	fmt.Println("==========================================================")
	fmt.Printf("\nToken (give to the roster source): %s\n", token)
	fmt.Printf("\nHash (auth.roster_token_hash):     %s\n", string(hashBytes))
	fmt.Println("\nEnvironment variable form:")
	fmt.Printf("\n  export CHRV_AUTH_ROSTER_TOKEN_HASH='%s'\n\n", string(hashBytes))
}
