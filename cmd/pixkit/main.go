package main

import "github.com/MeKo-Tech/pixkit/cmd/pixkit/cmd"

func main() {
	cmd.Execute()
}
