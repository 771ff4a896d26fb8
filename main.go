package main

import "github.com/elcano/mapd/cmd"

func main() {
	cmd.Execute()
}
