package main

import "github.com/clinical-research/cohort/cmd"

func main() {
	cmd.Execute()
}
