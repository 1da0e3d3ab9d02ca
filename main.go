package main

import "github.com/KaramelBytes/metstat-cli/cmd"

func main() {
	cmd.Execute()
}
