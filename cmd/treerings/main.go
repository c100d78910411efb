package main

import "github.com/MeKo-Tech/treerings/cmd/treerings/cmd"

func main() {
	cmd.Execute()
}
