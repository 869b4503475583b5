// Command sealtool generates token seal keys and seals platform access
// tokens for manual database setup during development.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/castpost/castpost-api/internal/credential"
)

func main() {
	genKey := flag.Bool("genkey", false, "generate a new 32-byte seal key and print it as hex")
	keyHex := flag.String("key", "", "hex-encoded 32-byte seal key")
	token := flag.String("token", "", "plaintext access token to seal")
	flag.Parse()

	if *genKey {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hex.EncodeToString(key))
		return
	}

	if *keyHex == "" || *token == "" {
		fmt.Fprintln(os.Stderr, "usage: sealtool -genkey | sealtool -key <hex> -token <token>")
		os.Exit(1)
	}

	key, err := hex.DecodeString(*keyHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid key: %v\n", err)
		os.Exit(1)
	}

	sealed, err := credential.Seal(key, *token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seal token: %v\n", err)
		os.Exit(1)
	}

	// Base64 pastes cleanly into a bytea column via decode(..., 'base64').
	fmt.Println(base64.StdEncoding.EncodeToString(sealed))
}
