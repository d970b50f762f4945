package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

// Options is the root command; the struct tags are read by go-flags.
type Options struct {
	Serve ServeCmd `command:"serve" description:"Start the HTTP API and, when configured, the Telegram channel"`
	Token TokenCmd `command:"token" description:"Issue a bearer token for a user id"`
}

func newParser(opts *Options) *flags.Parser {
	return flags.NewParser(opts, flags.Default)
}

func main() {
	if _, err := newParser(&Options{}).Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
