package main

import "github.com/upb/answer-detector/internal/cli"

func main() {
	cli.Execute()
}
