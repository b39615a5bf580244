package main

import (
	"github.com/queuectl/queuectl/tools/linters/timeutc"
	"golang.org/x/tools/go/analysis/singlechecker"
)

func main() {
	singlechecker.Main(timeutc.Analyzer)
}
