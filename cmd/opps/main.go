// Package main is the entry point for the opps CLI.
package main

import "github.com/oppfinder/opps/internal/cli"

func main() {
	cli.Execute()
}
