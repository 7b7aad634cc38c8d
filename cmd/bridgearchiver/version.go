package main

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/urfave/cli/v3"
)

type buildInfo struct {
	Version   string
	GoVersion string
	Commit    string
	BuildTime string
	Modified  bool
}

// readBuildInfo collects the module version and VCS stamps embedded by the Go toolchain.
func readBuildInfo() buildInfo {
	bi := buildInfo{Version: "unknown", GoVersion: "unknown"}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return bi
	}

	bi.Version = info.Main.Version
	bi.GoVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			bi.Commit = setting.Value
		case "vcs.time":
			bi.BuildTime = setting.Value
		case "vcs.modified":
			bi.Modified = setting.Value == "true"
		}
	}
	return bi
}

var versionCommand = &cli.Command{
	Name:  "version",
	Usage: "Print version information",
	Action: func(ctx context.Context, command *cli.Command) error {
		bi := readBuildInfo()

		fmt.Printf("bridgearchiver %s (%s)\n", bi.Version, bi.GoVersion)
		if bi.Commit != "" {
			dirty := ""
			if bi.Modified {
				dirty = " (dirty)"
			}
			fmt.Printf("commit: %s%s\n", bi.Commit, dirty)
		}
		if bi.BuildTime != "" {
			fmt.Printf("built: %s\n", bi.BuildTime)
		}
		return nil
	},
}
