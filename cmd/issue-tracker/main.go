package main

import (
	"log"

	"github.com/psds-microservice/issue-tracker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
