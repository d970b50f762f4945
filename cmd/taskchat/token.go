package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"taskchat/internal/api"
	"taskchat/internal/config"
)

// TokenCmd prints a signed bearer token, handy for calling the API by hand.
type TokenCmd struct {
	Config string        `short:"f" long:"config" description:"YAML config path"`
	User   string        `short:"u" long:"user" required:"true" description:"user id the token is issued for"`
	TTL    time.Duration `long:"ttl" default:"24h" description:"token lifetime, 0 for no expiry"`

	out io.Writer
}

func (c *TokenCmd) Execute(_ []string) error {
	cfg, err := config.Read(c.Config)
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	user := strings.TrimSpace(c.User)
	if user == "" {
		return fmt.Errorf("user id must not be empty")
	}

	token, err := api.NewAuthenticator(cfg.JWTSecret).IssueToken(user, c.TTL)
	if err != nil {
		return err
	}

	out := c.out
	if out == nil {
		out = os.Stdout
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
