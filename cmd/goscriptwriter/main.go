/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"goscriptwriter/internal/config"
	"goscriptwriter/internal/crash"
	applog "goscriptwriter/internal/log"
	"goscriptwriter/internal/telemetry"
	"goscriptwriter/internal/version"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "GoScriptWriter - screenplay block editor")
	fmt.Fprintln(w, version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  goscriptwriter version                              Show version")
	fmt.Fprintln(w, "  goscriptwriter init <dir> <name>                    Create a project")
	fmt.Fprintln(w, "  goscriptwriter import <dir> <file.txt>              Replace the script with a plain text import")
	fmt.Fprintln(w, "  goscriptwriter outline <dir>                        Print the navigator outline")
	fmt.Fprintln(w, "  goscriptwriter add <dir> <type> <text>              Append a block as if typed")
	fmt.Fprintln(w, "  goscriptwriter retype <dir> <pos> <type>            Change the type of the block at pos")
	fmt.Fprintln(w, "  goscriptwriter index <dir>                          Check and refresh the search index")
	fmt.Fprintln(w, "  goscriptwriter search <dir> [flags] <query>         Search the script")
	fmt.Fprintln(w, "  goscriptwriter snapshots <dir> [list|save|restore <id>|prune <keep>|diff]")
	fmt.Fprintln(w, "  goscriptwriter templates list [<dir>]               List known templates")
	fmt.Fprintln(w, "  goscriptwriter templates validate <file>            Validate a template file")
	fmt.Fprintln(w, "  goscriptwriter templates export <dir> <zip>         Pack the project templates")
	fmt.Fprintln(w, "  goscriptwriter templates install <dir> <zip>        Install a template pack")
	fmt.Fprintln(w, "  goscriptwriter export <dir> [-preset reading|draft] [-format pdf,txt] [-o dir]")
	fmt.Fprintln(w, "  goscriptwriter watch <dir>                          Reindex when the project template changes")
	fmt.Fprintln(w, "  goscriptwriter publish <dir>                        Publish the script to the backend")
	fmt.Fprintln(w, "  goscriptwriter serve                                Run the backend API")
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// app carries what every command needs.
type app struct {
	cfg    config.AppConfig
	secret string
	out    io.Writer
	errOut io.Writer
	log    *slog.Logger
	guard  *crash.Guard
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, secret, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		cfg = config.Defaults()
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
		Console:   stderr,
	})
	telemetry.NewDefault(telemetry.FromEnv().WithOptIn(cfg.General.TelemetryOptIn))
	defer telemetry.Default().Close()

	a := &app{cfg: cfg, secret: secret, out: stdout, errOut: stderr, log: applog.WithComponent("cli"), guard: &crash.Guard{}}
	defer a.guard.Recover()

	if len(args) == 0 {
		usage(stdout)
		return 0
	}
	cmd, rest := args[0], args[1:]
	a.log.Debug("start", slog.String("cmd", cmd), slog.Int("args", len(rest)))
	telemetry.Event("command", map[string]any{"name": cmd})

	var cerr error
	switch cmd {
	case "version", "--version", "-v":
		fmt.Fprintln(stdout, version.String())
		return 0
	case "help", "--help", "-h":
		usage(stdout)
		return 0
	case "init":
		cerr = a.cmdInit(rest)
	case "import":
		cerr = a.cmdImport(rest)
	case "outline":
		cerr = a.cmdOutline(rest)
	case "add":
		cerr = a.cmdAdd(rest)
	case "retype":
		cerr = a.cmdRetype(rest)
	case "index":
		cerr = a.cmdIndex(rest)
	case "search":
		cerr = a.cmdSearch(rest)
	case "snapshots":
		cerr = a.cmdSnapshots(rest)
	case "templates":
		cerr = a.cmdTemplates(rest)
	case "export":
		cerr = a.cmdExport(rest)
	case "watch":
		cerr = a.cmdWatch(rest)
	case "publish":
		cerr = a.cmdPublish(rest)
	case "serve":
		cerr = a.cmdServe(rest)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		usage(stderr)
		return 2
	}
	telemetry.Default().Flush(context.Background())
	if cerr != nil {
		var ue usageError
		if errors.As(cerr, &ue) {
			fmt.Fprintln(stderr, ue.Error())
			usage(stderr)
			return 2
		}
		a.log.Error("command failed", slog.String("cmd", cmd), slog.Any("err", cerr))
		fmt.Fprintln(stderr, "Error:", cerr)
		return 1
	}
	return 0
}
