package main

import (
	"github.com/humanbelnik/kinomatch/internal/app"
	"github.com/humanbelnik/kinomatch/internal/config"
)

func main() {
	app.Go(config.MustLoad())
}
