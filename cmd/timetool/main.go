/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sioXD/GitLab-TimeTool/internal/cli"
	"github.com/sioXD/GitLab-TimeTool/internal/config"
	"github.com/sioXD/GitLab-TimeTool/internal/logger"
)

var version = "dev"

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	root := cli.NewRootCommand(cfg, log, version)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
