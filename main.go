package main

import "github.com/ValentinKolb/lmstore/cmd"

func main() {
	cmd.Execute()
}
