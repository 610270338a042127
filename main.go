package main

import "github.com/maastricht-university/edmo-sensing/cmd"

func main() {
	cmd.Execute()
}
