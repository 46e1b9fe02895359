package main

import (
	"os"

	"horse.fit/news-gatherer/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
