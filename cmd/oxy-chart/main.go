// Command oxy-chart runs chart documents: in a window with hot reload, headless into a PNG, or
// by printing the uniform schema a shader exposes.
package main

import (
	"context"
	"os"

	"github.com/Carmen-Shannon/oxy-chart/common"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		common.Logger().Error("oxy-chart", "err", err)
		os.Exit(1)
	}
}
