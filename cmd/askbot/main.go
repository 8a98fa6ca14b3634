package main

import (
	"os"

	"github.com/ashureev/wms-askbot/internal/cli"
)

func main() {
	os.Exit(int(cli.Run()))
}
