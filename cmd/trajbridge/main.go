// trajbridge bridges a local Unix socket to a balloon trajectory
// prediction engine.
package main

import (
	"os"

	"github.com/lydakis/trajbridge/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
