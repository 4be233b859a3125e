package main

import "github.com/vietddude/reqtrack/internal/cli"

func main() {
	cli.Execute()
}
