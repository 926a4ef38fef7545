package main

import "github.com/deepgram/aiproxy/internal/cli"

func main() {
	cli.Execute()
}
