// Command netimpact analyzes link-state network topologies and serves the
// analyses over HTTP.
package main

import "github.com/dd0wney/cluso-netimpact/cmd/netimpact/commands"

func main() {
	commands.Execute()
}
