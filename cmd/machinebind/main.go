package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"

	"github.com/slashdevops/machinebind/internal/version"
)

const applicationName = "machinebind"

func main() {
	a := &app{}

	err := fang.Execute(
		context.Background(),
		newRootCmd(a),
		fang.WithVersion(version.String()),
		fang.WithNotifySignal(os.Interrupt),
	)

	if werr := a.writeMetrics(); werr != nil {
		fmt.Fprintln(os.Stderr, failStyle.Render("metrics: ")+werr.Error())
	}

	if err != nil {
		os.Exit(1)
	}
}
