package main

import "github.com/Asishkarthikeya/Codebase-Agent/cmd"

func main() {
	cmd.Execute()
}
