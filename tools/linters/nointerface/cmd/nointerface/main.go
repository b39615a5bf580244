package main

import (
	"github.com/queuectl/queuectl/tools/linters/nointerface"
	"golang.org/x/tools/go/analysis/singlechecker"
)

func main() {
	singlechecker.Main(nointerface.Analyzer)
}
