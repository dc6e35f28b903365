// cmd/cpython-stats/main.go
package main

import (
	"os"

	"github.com/ambv/cpython-stats/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
