package main

import "github.com/shellmining/mobilex/cmd/mobilex/commands"

func main() {
	commands.Execute()
}
