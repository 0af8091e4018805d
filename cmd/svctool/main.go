package main

import (
	"github.com/lhdbsbz/svctool"
	"github.com/lhdbsbz/svctool/hooks"
)

func main() {
	svctool.Main(hooks.Hooks{})
}
