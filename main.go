package main

import "github.com/kebairia/backman/cmd"

func main() {
	cmd.Execute()
}
