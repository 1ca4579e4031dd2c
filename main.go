package main

import "github.com/vibast-solutions/ms-go-locks/cmd"

func main() {
	cmd.Execute()
}
