// Package main implements keygen, which creates credentials for the
// audio2srt server: bcrypt hashes for API keys and signed bearer tokens.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/phrazzld/audio2srt/internal/config"
	"github.com/phrazzld/audio2srt/internal/service/auth"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "keygen:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	key := fs.String("key", "", "API key to hash (a random key is generated when empty)")
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	token := fs.Bool("token", false, "mint a JWT instead of an API key hash")
	subject := fs.String("subject", "", "token subject, required with -token")
	secret := fs.String("secret", os.Getenv("AUDIO2SRT_AUTH_JWT_SECRET"), "JWT signing secret (env AUDIO2SRT_AUTH_JWT_SECRET)")
	lifetime := fs.Int("lifetime", 60, "token lifetime in minutes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *token {
		return mintToken(out, *secret, *subject, *lifetime)
	}
	return hashKey(out, *key, *cost)
}

func hashKey(out io.Writer, key string, cost int) error {
	generated := false
	if key == "" {
		var err error
		key, err = auth.GenerateAPIKey()
		if err != nil {
			return err
		}
		generated = true
	}

	hash, err := auth.HashAPIKey(key, cost)
	if err != nil {
		return err
	}

	if generated {
		fmt.Fprintf(out, "API key: %s\n", key)
	}
	fmt.Fprintf(out, "Hash:    %s\n", hash)
	fmt.Fprintln(out, "Add the hash to auth.api_key_hashes (AUDIO2SRT_AUTH_API_KEY_HASHES).")
	return nil
}

func mintToken(out io.Writer, secret, subject string, lifetime int) error {
	if subject == "" {
		return errors.New("-subject is required with -token")
	}

	svc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            secret,
		TokenLifetimeMinutes: lifetime,
	})
	if err != nil {
		return err
	}

	tok, err := svc.GenerateToken(context.Background(), subject)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, tok)
	return nil
}
