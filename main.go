package main

import "github.com/KaramelBytes/stubdecode/cmd"

func main() {
	cmd.Execute()
}
