package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/crypto/sha3"
)

// hashgen prints the SHA3-512 digest of a password for the api.password_hash
// config field. The password is read from the first argument, or from stdin
// when no argument is given.
func main() {
	var password string
	if len(os.Args) > 1 {
		password = os.Args[1]
	} else {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			log.Fatalf("Failed to read password: %v", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if password == "" {
		log.Fatal("Password must not be empty.")
	}

	sum := sha3.Sum512([]byte(password))
	fmt.Println(hex.EncodeToString(sum[:]))
}
