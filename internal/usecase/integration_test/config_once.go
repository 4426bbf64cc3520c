//go:build integration
// +build integration

package integrationtest

import (
	"sync"

	"github.com/humanbelnik/kinomatch/internal/config"
)

var (
	cfg     *config.Config
	cfgErr  error
	cfgOnce sync.Once
)

func getConfig() (*config.Config, error) {
	cfgOnce.Do(func() {
		cfg, cfgErr = config.Load("")
	})
	return cfg, cfgErr
}
