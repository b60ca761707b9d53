// Command sgc builds, verifies and publishes Smart Guitar OTA bundles.
package main

import "github.com/smartguitar/sgc/internal/cli"

func main() {
	cli.Execute()
}
