package main

import "github.com/oshokin/channelup/cmd/channelup/cmd"

func main() {
	cmd.Execute()
}
