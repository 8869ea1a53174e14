// netsteerctl -- CLI client for the netsteerd daemon.
package main

import "github.com/cococorp/netsteer/cmd/netsteerctl/commands"

func main() {
	commands.Execute()
}
