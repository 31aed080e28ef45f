package application_test

import (
	"os"
	"testing"

	"stakehouse/config"
)

func TestMain(m *testing.M) {
	config.SetTestConfig(config.NewTestConfig())
	_ = config.Get()

	code := m.Run()
	os.Exit(code)
}
