package main

import "github.com/pinmark/pinmark/cmd"

func main() {
	cmd.Execute()
}
