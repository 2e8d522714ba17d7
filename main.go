package main

import "clipsmith/cmd"

func main() {
	cmd.Execute()
}
