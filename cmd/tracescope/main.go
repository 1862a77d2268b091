// Package main implements the tracescope CLI.
package main

func main() {
	Execute()
}
