// One-off: go run scripts/gensecret.go [bytes]
// Prints a random value for AUTH_TOKEN_SECRET.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
)

func main() {
	n := 48
	if len(os.Args) > 1 {
		v, err := strconv.Atoi(os.Args[1])
		if err != nil || v < 32 {
			fmt.Fprintln(os.Stderr, "size must be a number >= 32")
			os.Exit(2)
		}
		n = v
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	fmt.Print(base64.RawURLEncoding.EncodeToString(b))
}
