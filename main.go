package main

import (
	"log"

	"github.com/jrostami/channel-scout/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
