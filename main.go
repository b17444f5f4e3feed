package main

import "github.com/frahmantamala/school-management/cmd"

func main() {
	cmd.Execute()
}
