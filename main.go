package main

import "pandal-finder/internal/command"

func main() {
	command.Execute()
}
