// Package main is the operator CLI for the interview core.
package main

import "github.com/aura-interview/backend/internal/cli"

func main() {
	cli.Execute()
}
