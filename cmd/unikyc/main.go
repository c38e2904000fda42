package main

import "unikyc/cmd/unikyc/commands"

func main() {
	commands.Execute()
}
