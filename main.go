package main

import "github.com/Laisky/filestream/cmd"

func main() {
	cmd.Execute()
}
