// Command hashpw reads a password from the terminal without echo and prints
// its bcrypt hash. Useful for seeding accounts by hand.
package main

import (
	"fmt"
	"os"

	"github.com/akovalyov/cliphub/internal/cryptox"
	"golang.org/x/term"
)

func main() {

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()

	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	hash, err := cryptox.HashPassword(string(password))
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	fmt.Println(hash)
}
