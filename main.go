package main

import "github.com/vibast-solutions/ms-go-mailinglist/cmd"

func main() {
	cmd.Execute()
}
