package main

import "github.com/jfmyers9/murmur/cmd"

func main() {
	cmd.Execute()
}
