// Package main provides the CLI entrypoint for ewwnotifyd.
package main

func main() {
	Execute()
}
