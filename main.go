package main

import (
	"log"

	"github.com/kira-project/kira-recommender/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
