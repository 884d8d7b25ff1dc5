// Command quorum validates, draws and runs approval flows, and serves them
// over HTTP or the Model Context Protocol.
package main

func main() {
	Execute()
}
