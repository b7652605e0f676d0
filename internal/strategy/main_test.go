package strategy

import (
	"os"
	"testing"

	"stock_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init("test"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}
