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
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"goscriptwriter/internal/autocorrect"
	"goscriptwriter/internal/backend"
	"goscriptwriter/internal/blockstyle"
	"goscriptwriter/internal/changes"
	"goscriptwriter/internal/config"
	"goscriptwriter/internal/domain"
	"goscriptwriter/internal/export"
	"goscriptwriter/internal/navigator"
	"goscriptwriter/internal/scenario"
	"goscriptwriter/internal/script"
	"goscriptwriter/internal/storage"
	"goscriptwriter/internal/telemetry"
	"goscriptwriter/internal/templatepack"
	"goscriptwriter/internal/textdoc"
	"goscriptwriter/internal/undo"
)

type usageError string

func (e usageError) Error() string { return string(e) }

// project is an opened project with its script and resolved template.
type project struct {
	ph  *storage.ProjectHandle
	doc *textdoc.Document
	tpl *blockstyle.Template
}

func (a *app) open(dir string) (*project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	ph, err := storage.Open(abs)
	if err != nil {
		return nil, err
	}
	a.guard.Project = ph
	doc, err := storage.LoadScript(ph)
	if err != nil {
		return nil, err
	}
	a.guard.Doc = doc
	tpl := a.resolveTemplate(ph)
	blockstyle.SetCurrent(tpl)
	return &project{ph: ph, doc: doc, tpl: tpl}, nil
}

// registry loads user and, when ph is set, project templates on top of the builtin one.
func (a *app) registry(ph *storage.ProjectHandle) *blockstyle.Registry {
	reg := blockstyle.NewRegistry()
	if dir, err := config.TemplatesDir(); err == nil {
		for _, e := range blockstyle.LoadDir(dir, reg.User) {
			a.log.Warn("user template skipped", slog.Any("err", e))
		}
	}
	if ph != nil {
		for _, e := range blockstyle.LoadDir(ph.TemplatesDir(), reg.Project) {
			a.log.Warn("project template skipped", slog.Any("err", e))
		}
	}
	return reg
}

func (a *app) resolveTemplate(ph *storage.ProjectHandle) *blockstyle.Template {
	name := ph.Project.Template
	if name == "" {
		name = a.cfg.General.Template
	}
	if tpl, ok := a.registry(ph).Resolve(name); ok {
		return tpl
	}
	a.log.Warn("unknown template, using default", slog.String("template", name))
	return blockstyle.Default()
}

func (a *app) engine(p *project) (*scenario.Engine, error) {
	opts := autocorrect.Options{
		CapitalizeSentences: a.cfg.Editor.CapitalizeSentences,
		CollapseSpaces:      a.cfg.Editor.CollapseSpaces,
	}
	switch m := a.cfg.Editor.AbbreviationModel; m {
	case "":
	case "english":
		ab, err := autocorrect.NewEnglishAbbreviations()
		if err != nil {
			return nil, err
		}
		opts.Abbreviations = ab
	default:
		ab, err := autocorrect.LoadAbbreviations(m)
		if err != nil {
			return nil, err
		}
		opts.Abbreviations = ab
	}
	hist := undo.NewManager(undo.Config{MaxBytes: a.cfg.Editor.UndoMaxBytes, MinInterval: a.cfg.Editor.UndoCoalesce()})
	e := scenario.NewEngine(p.doc,
		scenario.WithTemplate(p.tpl),
		scenario.WithHistory(hist),
		scenario.WithCorrector(autocorrect.New(opts)),
	)
	e.Subscribe(func(ev scenario.Event) {
		if ev.Kind == scenario.UnbalancedGroup {
			fmt.Fprintf(a.errOut, "warning: %s at block %d has no matching footer\n", ev.From, p.doc.PositionOf(ev.Block))
		}
	})
	return e, nil
}

// commit saves the script, refreshes the index and records a snapshot.
func (a *app) commit(ctx context.Context, p *project) error {
	if err := storage.SaveScript(p.ph, p.doc); err != nil {
		return err
	}
	if err := storage.UpdateIndex(ctx, p.ph, p.doc, p.tpl); err != nil {
		return err
	}
	if _, err := storage.SaveScriptSnapshot(ctx, p.ph, p.doc, time.Now()); err != nil {
		return err
	}
	return storage.Save(p.ph)
}

func (a *app) cmdInit(args []string) error {
	if len(args) < 2 {
		return usageError("init requires <dir> and <name>")
	}
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	proj := domain.NewProject(args[1])
	if a.cfg.General.Template != "" {
		proj.Template = a.cfg.General.Template
	}
	ph, err := storage.InitProject(abs, proj)
	if err != nil {
		return err
	}
	a.guard.Project = ph
	a.log.Info("project created", slog.String("root", abs), slog.String("name", args[1]))
	fmt.Fprintln(a.out, "Created project at", abs)
	return nil
}

func (a *app) cmdImport(args []string) error {
	if len(args) < 2 {
		return usageError("import requires <dir> and <file>")
	}
	p, err := a.open(args[0])
	if err != nil {
		return err
	}
	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()
	doc, perrs, err := script.Import(f, p.tpl)
	if err != nil {
		return err
	}
	for _, pe := range perrs {
		fmt.Fprintf(a.errOut, "%s: %s\n", args[1], pe.Error())
	}
	p.doc = doc
	a.guard.Doc = doc
	if err := a.commit(context.Background(), p); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Imported %d blocks (%d warnings)\n", doc.Len(), len(perrs))
	return nil
}

func (a *app) cmdOutline(args []string) error {
	if len(args) < 1 {
		return usageError("outline requires <dir>")
	}
	p, err := a.open(args[0])
	if err != nil {
		return err
	}
	printOutline(a.out, navigator.Rebuild(p.doc, p.tpl).Outline())
	return nil
}

func printOutline(w io.Writer, out domain.Outline) {
	for _, e := range out {
		indent := strings.Repeat("  ", e.Depth)
		label := e.Header
		switch {
		case e.Folder:
			label = "[" + label + "]"
		case e.Number > 0:
			label = fmt.Sprintf("%d. %s", e.Number, label)
		}
		if e.Description != "" {
			fmt.Fprintf(w, "%s%s  %s\n", indent, label, e.Description)
		} else {
			fmt.Fprintf(w, "%s%s\n", indent, label)
		}
	}
}

func (a *app) cmdAdd(args []string) error {
	if len(args) < 3 {
		return usageError("add requires <dir>, <type> and <text>")
	}
	typ, err := blockstyle.ParseType(args[1])
	if err != nil {
		return err
	}
	p, err := a.open(args[0])
	if err != nil {
		return err
	}
	tracker, err := changes.NewTracker(p.doc)
	if err != nil {
		return err
	}
	e, err := a.engine(p)
	if err != nil {
		return err
	}
	defer telemetry.Default().ObserveEngine(e)()

	last := p.doc.Last()
	var b textdoc.BlockID
	if p.doc.Len() == 1 && p.doc.Text(last) == "" && p.doc.Tag(last) == blockstyle.Undefined {
		e.InitDocument()
		b = last
		e.ChangeBlockType(b, typ)
	} else {
		p.doc.SetCursor(textdoc.Position{Block: last, Offset: p.doc.TextLen(last)})
		b = e.AddBlock(typ)
	}
	typeText(e, p.doc, strings.Join(args[2:], " "))

	ch, changed, err := tracker.SaveChanges()
	if err != nil {
		return err
	}
	if err := a.commit(context.Background(), p); err != nil {
		return err
	}
	if changed {
		a.log.Debug("change recorded", slog.String("id", ch.ID.String()), slog.Int("patch", len(ch.Patch)))
	}
	fmt.Fprintf(a.out, "%d %s: %s\n", blockPos(p.doc, b), e.Classify(b), p.doc.Text(b))
	return nil
}

// typeText feeds text to the engine one rune at a time, running autocorrection after
// each keystroke like an editor would.
func typeText(e *scenario.Engine, doc *textdoc.Document, text string) {
	for _, r := range text {
		cur := doc.Cursor()
		doc.InsertText(cur.Block, cur.Offset, string(r))
		e.OnKeystroke(string(r))
	}
}

// blockPos is the index of b in document order, the numbering used by retype and search.
func blockPos(doc *textdoc.Document, b textdoc.BlockID) int {
	for i, id := range doc.Blocks() {
		if id == b {
			return i
		}
	}
	return -1
}

func (a *app) cmdRetype(args []string) error {
	if len(args) < 3 {
		return usageError("retype requires <dir>, <pos> and <type>")
	}
	pos, err := strconv.Atoi(args[1])
	if err != nil {
		return usageError("pos must be a number")
	}
	typ, err := blockstyle.ParseType(args[2])
	if err != nil {
		return err
	}
	p, err := a.open(args[0])
	if err != nil {
		return err
	}
	blocks := p.doc.Blocks()
	if pos < 0 || pos >= len(blocks) {
		return fmt.Errorf("no block at %d (script has %d)", pos, len(blocks))
	}
	e, err := a.engine(p)
	if err != nil {
		return err
	}
	defer telemetry.Default().ObserveEngine(e)()
	from := e.Classify(blocks[pos])
	if !e.ChangeBlockType(blocks[pos], typ) {
		return fmt.Errorf("cannot change block %d from %s to %s", pos, from, typ)
	}
	if err := a.commit(context.Background(), p); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d: %s -> %s\n", pos, from, typ)
	return nil
}

func (a *app) cmdIndex(args []string) error {
	if len(args) < 1 {
		return usageError("index requires <dir>")
	}
	p, err := a.open(args[0])
	if err != nil {
		return err
	}
	ctx := context.Background()
	rebuilt, err := storage.DetectAndRebuildIndex(ctx, p.ph, p.doc, p.tpl)
	if err != nil {
		return err
	}
	if !rebuilt {
		if err := storage.UpdateIndex(ctx, p.ph, p.doc, p.tpl); err != nil {
			return err
		}
	}
	fmt.Fprintf(a.out, "Indexed %d blocks (rebuilt: %v)\n", len(storage.IndexBlocks(p.doc)), rebuilt)
	return nil
}

func (a *app) cmdSearch(args []string) error {
	if len(args) < 1 {
		return usageError("search requires <dir>")
	}
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	types := fs.String("type", "", "comma separated block types")
	speaker := fs.String("speaker", "", "only lines of this character")
	scenes := fs.String("scenes", "", "scene range, e.g. 2-5")
	limit := fs.Int("limit", 50, "maximum results")
	if err := fs.Parse(args[1:]); err != nil {
		return usageError(err.Error())
	}
	q := storage.SearchQuery{Text: strings.Join(fs.Args(), " "), Speaker: *speaker, Limit: *limit}
	if *types != "" {
		for _, t := range strings.Split(*types, ",") {
			typ, err := blockstyle.ParseType(t)
			if err != nil {
				return err
			}
			q.Types = append(q.Types, typ.String())
		}
	}
	var err error
	if q.SceneFrom, q.SceneTo, err = parseSceneRange(*scenes); err != nil {
		return usageError(err.Error())
	}
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	res, err := storage.Search(context.Background(), abs, q)
	if err != nil {
		return err
	}
	for _, r := range res {
		text := r.Snippet
		if text == "" {
			text = r.Text
		}
		who := ""
		if r.Speaker != "" {
			who = " " + r.Speaker
		}
		fmt.Fprintf(a.out, "%4d  scene %-3d %-14s%s  %s\n", r.Pos, r.Scene, r.Type, who, text)
	}
	fmt.Fprintf(a.out, "%d result(s)\n", len(res))
	return nil
}

// parseSceneRange accepts "", "N", "N-", "-M" and "N-M".
func parseSceneRange(s string) (from, to int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, nil
	}
	lo, hi, ranged := strings.Cut(s, "-")
	if lo != "" {
		if from, err = strconv.Atoi(lo); err != nil || from < 0 {
			return 0, 0, fmt.Errorf("bad scene range %q", s)
		}
	}
	if !ranged {
		return from, from, nil
	}
	if hi != "" {
		if to, err = strconv.Atoi(hi); err != nil || to < 0 {
			return 0, 0, fmt.Errorf("bad scene range %q", s)
		}
	}
	return from, to, nil
}

func (a *app) cmdSnapshots(args []string) error {
	if len(args) < 1 {
		return usageError("snapshots requires <dir>")
	}
	p, err := a.open(args[0])
	if err != nil {
		return err
	}
	ctx := context.Background()
	sub := "list"
	if len(args) > 1 {
		sub = args[1]
	}
	switch sub {
	case "list":
		list, err := storage.ListScriptSnapshots(ctx, p.ph, 20)
		if err != nil {
			return err
		}
		for _, s := range list {
			fmt.Fprintf(a.out, "%d  %s  %s\n", s.ID, s.TS.Local().Format(time.DateTime), s.Hash[:12])
		}
	case "save":
		saved, err := storage.SaveScriptSnapshot(ctx, p.ph, p.doc, time.Now())
		if err != nil {
			return err
		}
		if saved {
			fmt.Fprintln(a.out, "Snapshot saved")
		} else {
			fmt.Fprintln(a.out, "Unchanged since last snapshot")
		}
	case "restore":
		if len(args) < 3 {
			return usageError("snapshots restore requires <id>")
		}
		id, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return usageError("id must be a number")
		}
		snap, ok, err := storage.GetScriptSnapshot(ctx, p.ph, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no snapshot %d", id)
		}
		doc, err := snap.Document()
		if err != nil {
			return err
		}
		p.doc = doc
		a.guard.Doc = doc
		if err := a.commit(ctx, p); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Restored snapshot %d\n", id)
	case "prune":
		keep := 20
		if len(args) > 2 {
			if keep, err = strconv.Atoi(args[2]); err != nil {
				return usageError("keep must be a number")
			}
		}
		n, err := storage.PruneOldScriptSnapshots(ctx, p.ph, keep)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Pruned %d snapshot(s)\n", n)
	case "diff":
		snap, ok, err := storage.GetLatestScriptSnapshot(ctx, p.ph)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no snapshots yet")
		}
		prev, err := snap.Document()
		if err != nil {
			return err
		}
		ins, del := changes.Stats(prev.PlainText(), p.doc.PlainText())
		fmt.Fprintf(a.out, "Since snapshot %d: +%d -%d characters\n", snap.ID, ins, del)
	default:
		return usageError("unknown snapshots command " + sub)
	}
	return nil
}

func (a *app) cmdTemplates(args []string) error {
	if len(args) < 1 {
		return usageError("templates requires a subcommand")
	}
	switch args[0] {
	case "list":
		var ph *storage.ProjectHandle
		if len(args) > 1 {
			p, err := a.open(args[1])
			if err != nil {
				return err
			}
			ph = p.ph
		}
		reg := a.registry(ph)
		for _, n := range reg.Names() {
			t, _ := reg.Resolve(n)
			fmt.Fprintf(a.out, "%-20s %s\n", n, t.Description())
		}
	case "validate":
		if len(args) < 2 {
			return usageError("templates validate requires <file>")
		}
		t, err := blockstyle.LoadTemplateFile(args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s: ok (%d active types)\n", t.Name(), len(t.ActiveTypes()))
	case "export":
		if len(args) < 3 {
			return usageError("templates export requires <dir> and <zip>")
		}
		p, err := a.open(args[1])
		if err != nil {
			return err
		}
		m, err := templatepack.Export(p.ph.TemplatesDir(), args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Exported %d template(s) to %s\n", len(m.Templates), args[2])
	case "install":
		if len(args) < 3 {
			return usageError("templates install requires <dir> and <zip>")
		}
		p, err := a.open(args[1])
		if err != nil {
			return err
		}
		rep, err := templatepack.Install(p.ph.TemplatesDir(), args[2])
		fmt.Fprintf(a.out, "Installed %d, skipped %d\n", len(rep.Installed), len(rep.Skipped))
		return err
	default:
		return usageError("unknown templates command " + args[0])
	}
	return nil
}

func (a *app) cmdExport(args []string) error {
	if len(args) < 1 {
		return usageError("export requires <dir>")
	}
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	preset := fs.String("preset", string(export.PresetReading), "reading or draft")
	formats := fs.String("format", "", "comma separated formats: pdf, txt")
	outDir := fs.String("o", "", "output directory")
	if err := fs.Parse(args[1:]); err != nil {
		return usageError(err.Error())
	}
	p, err := a.open(args[0])
	if err != nil {
		return err
	}
	opt := export.BatchOptions{Preset: export.PresetName(*preset), OutDir: *outDir}
	if *formats != "" {
		opt.Formats = strings.Split(*formats, ",")
	}
	paths, err := export.BatchExport(p.ph, p.doc, p.tpl, opt)
	for _, path := range paths {
		fmt.Fprintln(a.out, path)
	}
	return err
}

func (a *app) cmdWatch(args []string) error {
	if len(args) < 1 {
		return usageError("watch requires <dir>")
	}
	p, err := a.open(args[0])
	if err != nil {
		return err
	}
	if !a.cfg.General.WatchTemplates {
		a.log.Info("template watching is disabled in the config; watching anyway for this session")
	}
	path := filepath.Join(p.ph.TemplatesDir(), p.ph.Project.Template+".yaml")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = blockstyle.WatchTemplate(ctx, path, func(t *blockstyle.Template, err error) {
		if err != nil {
			fmt.Fprintln(a.errOut, "template error:", err)
			return
		}
		blockstyle.SetCurrent(t)
		p.tpl = t
		if err := storage.RebuildIndex(ctx, p.ph, p.doc, t); err != nil {
			fmt.Fprintln(a.errOut, "reindex failed:", err)
			return
		}
		fmt.Fprintf(a.out, "Template %s reloaded, outline:\n", t.Name())
		printOutline(a.out, navigator.Rebuild(p.doc, t).Outline())
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Watching %s (Ctrl-C to stop)\n", path)
	<-ctx.Done()
	return nil
}

func (a *app) cmdPublish(args []string) error {
	if len(args) < 1 {
		return usageError("publish requires <dir>")
	}
	p, err := a.open(args[0])
	if err != nil {
		return err
	}
	if p.ph.Project.ID == "" {
		p.ph.Project.ID = domain.NewProject(p.ph.Project.Name).ID
		if err := storage.Save(p.ph); err != nil {
			return err
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Backend.Timeout())
	defer cancel()
	db, err := backend.Open(ctx, a.cfg.Backend.DSN, a.secret)
	if err != nil {
		return err
	}
	defer db.Close()
	store := backend.NewStore(db)
	pid, err := store.EnsureProject(ctx, p.ph.Project.ID, p.ph.Project)
	if err != nil {
		return err
	}
	rev, changed, err := store.Publish(ctx, pid, p.doc, p.tpl)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintf(a.out, "Already published as revision %d\n", rev.Version)
		return nil
	}
	telemetry.Event("published", map[string]any{"blocks": p.doc.Len()})
	fmt.Fprintf(a.out, "Published revision %d\n", rev.Version)
	return nil
}

func (a *app) cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	scfg := backend.ServerConfigFromEnv()
	fs.StringVar(&scfg.Addr, "addr", scfg.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	octx, cancel := context.WithTimeout(ctx, a.cfg.Backend.Timeout())
	db, err := backend.Open(octx, a.cfg.Backend.DSN, a.secret)
	cancel()
	if err != nil {
		return err
	}
	defer db.Close()
	return backend.Serve(ctx, scfg.Addr, backend.Handler(backend.NewStore(db), scfg.Secret))
}
