package main

import (
	"github.com/mengelbart/vplay/cmdmain"
	_ "github.com/mengelbart/vplay/subcmd"
)

func main() {
	cmdmain.Main()
}
