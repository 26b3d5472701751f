package main

import "github.com/frahmantamala/research-hours/cmd"

func main() {
	cmd.Execute()
}
