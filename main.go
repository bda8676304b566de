package main

import "github.com/cluster1900/eip7702-fulldemo-sub000/cmd"

func main() {
	cmd.Execute()
}
