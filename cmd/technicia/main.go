package main

import "github.com/technicia/chat-bfa/internal/cli"

func main() {
	cli.Execute()
}
