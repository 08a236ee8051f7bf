// Command admintoken mints a short-lived admin JWT signed with SECRET_KEY.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"dapur-be/internal/auth"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("admintoken", flag.ContinueOnError)
	subject := fs.String("subject", "", "who the token is issued to")
	ttl := fs.Duration("ttl", 12*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return fmt.Errorf("-subject is required")
	}

	token, err := auth.GenerateAdminToken([]byte(os.Getenv("SECRET_KEY")), *subject, *ttl)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, token)
	return err
}
