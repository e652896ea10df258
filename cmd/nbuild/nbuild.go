// Command nbuild drives the dependency-graph engine: it loads (or builds)
// a graph database, runs the scheduler to completion over a requested set
// of targets, and reports a pass-end summary. The build-description
// parser is an external collaborator this binary does not implement;
// nbuild's own "parser" is the trivial one described below, just enough
// to exercise the engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	nbuildpkg "github.com/nodegraph/nbuild"
	"github.com/nodegraph/nbuild/internal/diag"
	"github.com/nodegraph/nbuild/internal/env"
	"github.com/nodegraph/nbuild/internal/flog"
	"github.com/nodegraph/nbuild/internal/graph"
	"github.com/nodegraph/nbuild/internal/jobqueue"
	"github.com/nodegraph/nbuild/internal/ngdb"
	"github.com/nodegraph/nbuild/internal/ngerr"
	"github.com/nodegraph/nbuild/internal/resultcache"
	"github.com/nodegraph/nbuild/internal/scheduler"
	"github.com/mattn/go-isatty"
	"golang.org/x/xerrors"
)

const helpText = `nbuild: incremental dependency-graph build engine

Usage: nbuild [flags] <target-file>...

Each target-file is treated as a File node; an Alias node named "all"
depends on all of them and is the pass's root.
---
`

func usage(fset *flag.FlagSet) func() {
	return func() {
		fmt.Fprintln(os.Stderr, helpText)
		fset.PrintDefaults()
	}
}

func main() {
	log.SetFlags(0)
	runErr := run()
	// RunAtExit fires after run returns on every path, success or failure,
	// since log.Fatalf below would otherwise os.Exit past any deferred
	// save/trim registered during run.
	if err := nbuildpkg.RunAtExit(); err != nil {
		log.Printf("nbuild: at-exit: %v", err)
	}
	if runErr != nil {
		log.Fatalf("nbuild: %v", runErr)
	}
}

func run() error {
	fset := flag.NewFlagSet("nbuild", flag.ExitOnError)
	dbPath := fset.String("db", ".nbuild.db", "path to the graph database")
	cacheDir := fset.String("cache", "", "directory for the content-addressed result cache (disabled if empty)")
	dotPath := fset.String("dot", "", "write a Graphviz DOT dump of the requested targets here")
	analyzeOnly := fset.Bool("analyze", false, "only run cycle analysis (gonum topo) and exit, without building")
	jobs := fset.Int("j", runtime.NumCPU(), "maximum number of concurrent local jobs")
	cacheTrimAge := fset.Duration("cachetrimage", 14*24*time.Hour, "delete cache entries older than this on exit")
	verbose := fset.Bool("verbose", false, "log per-node and migration decisions")
	stopOnError := fset.Bool("stoponerror", false, "abort the whole pass on the first node failure")
	continueAfterMove := fset.Bool("continueafterdbmove", false, "treat a moved database as a clean build instead of aborting")
	fset.Usage = usage(fset)
	if err := fset.Parse(os.Args[1:]); err != nil {
		return err
	}
	targetFiles := fset.Args()
	if len(targetFiles) == 0 {
		fset.Usage()
		return xerrors.New("no targets given")
	}

	level := flog.Normal
	if *verbose {
		level = flog.Verbose
	}
	logger := flog.New(level)

	if isatty.IsTerminal(os.Stdout.Fd()) {
		logger.V(flog.Verbose, "interactive terminal detected")
	}

	g, oldGraph, err := loadOrCreateGraph(*dbPath, targetFiles, *continueAfterMove, logger)
	if err != nil {
		return err
	}

	root, err := buildTargets(g, targetFiles)
	if err != nil {
		return err
	}

	if oldGraph != nil {
		g.Migrate(oldGraph)
		logger.V(flog.Verbose, "migrated state from previous database")
	}

	if *dotPath != "" {
		f, err := os.Create(*dotPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := g.SerializeToDot([]*graph.Node{root}, true, f); err != nil {
			return err
		}
	}

	if *analyzeOnly {
		a, err := diag.AnalyzeGraph(g)
		if err != nil {
			return err
		}
		diag.WriteReport(os.Stdout, a)
		if len(a.StronglyConnected) > 0 {
			return xerrors.New("cycles detected")
		}
		return nil
	}

	var cache *resultcache.Cache
	if *cacheDir != "" {
		cache, err = resultcache.Open(*cacheDir)
		if err != nil {
			return err
		}
		nbuildpkg.RegisterAtExit(func() error {
			removed, err := cache.Trim(*cacheTrimAge)
			if err != nil {
				return err
			}
			logger.V(flog.Verbose, "cache trim removed %d stale entr(ies)", removed)
			return nil
		})
	}
	_ = cache // wired into node Builders that support caching

	// Registered now so it runs via RunAtExit on every return path below,
	// including a scheduler error or CyclicDependencyError: whatever
	// progress the pass made (stamps, dynamic deps) is still worth saving.
	nbuildpkg.RegisterAtExit(func() error {
		absPath, err := filepath.Abs(*dbPath)
		if err != nil {
			return err
		}
		db, err := graph.ToDatabase(g, absPath)
		if err != nil {
			return err
		}
		db.Env = env.Block()
		db.LibVarHash = env.LibVarHash()
		return ngdb.SaveFile(*dbPath, db)
	})

	q := jobqueue.New(*jobs)
	sched := scheduler.New(g, q, scheduler.Options{StopOnFirstError: *stopOnError})

	ctx := context.Background()
	scheduler.BeginRequest(g.AllNodes())

	err = sched.RunUntilDone(ctx, root, nil, func() { time.Sleep(10 * time.Millisecond) })
	if err != nil {
		var cyc *ngerr.CyclicDependencyError
		if xerrors.As(err, &cyc) {
			logger.Printf("build aborted: %v", cyc)
			return err
		}
		return err
	}

	summarizeFailures(g, logger)

	if root.State() == graph.Failed {
		return ngerr.ErrBuildFailed
	}
	logger.Printf("build succeeded")
	return nil
}

// summarizeFailures prints a pass-end summary: every failed node's name
// (first-error-line detail is the Builder's responsibility to have
// logged as it failed, since DoBuild errors are not retained here).
func summarizeFailures(g *graph.Graph, logger *flog.Logger) {
	var failures []string
	for _, n := range g.AllNodes() {
		if n.State() == graph.Failed {
			failures = append(failures, n.Name)
		}
	}
	if len(failures) == 0 {
		return
	}
	logger.Printf("%d node(s) failed:", len(failures))
	for _, name := range failures {
		logger.Printf("  %s", name)
	}
}

// loadOrCreateGraph loads *dbPath if present and compatible; on a forced
// reparse it returns the freshly-built graph alongside the old one so the
// caller can Migrate state across the description change.
func loadOrCreateGraph(dbPath string, targetFiles []string, continueAfterMove bool, logger *flog.Logger) (g *graph.Graph, old *graph.Graph, err error) {
	currentPath, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, nil, err
	}

	db, result, err := ngdb.LoadFile(dbPath, currentPath, continueAfterMove)
	switch result {
	case ngdb.LoadMissingOrIncompatible:
		logger.V(flog.Normal, "no usable database at %s; building fresh graph", dbPath)
		return graph.New(), nil, nil
	case ngdb.LoadError:
		logger.Printf("database corrupt, rebuilding from scratch: %v", err)
		return graph.New(), nil, nil
	case ngdb.LoadErrorMoved:
		return nil, nil, err
	}

	if result == ngdb.LoadOkNeedsReparse && db.OriginalPath != "" && db.OriginalPath != currentPath {
		// A moved database accepted via -continueafterdbmove is a clean
		// build: no state is migrated out of it.
		logger.V(flog.Normal, "database %s was moved; building fresh graph", dbPath)
		return graph.New(), nil, nil
	}

	oldGraph, err := graph.FromDatabase(db, newBuilderForRecord)
	if err != nil {
		logger.Printf("failed to reconstruct previous graph, rebuilding from scratch: %v", err)
		return graph.New(), nil, nil
	}

	if result == ngdb.LoadOkNeedsReparse {
		return graph.New(), oldGraph, nil
	}
	return oldGraph, nil, nil
}

// buildTargets is the trivial "parser": it treats each of targetFiles as a
// File node and wires an "all" Alias node as the pass root.
func buildTargets(g *graph.Graph, targetFiles []string) (*graph.Node, error) {
	var fileNodes []*graph.Node
	for _, path := range targetFiles {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		if n, ok := g.FindNode(abs); ok {
			fileNodes = append(fileNodes, n)
			continue
		}
		n, err := g.CreateNode(abs, nbuildpkg.FileNode, &graph.FileBuilder{}, "")
		if err != nil {
			return nil, err
		}
		if err := n.Builder.Initialize(g, n, ""); err != nil {
			return nil, err
		}
		fileNodes = append(fileNodes, n)
	}

	if root, ok := g.FindNode("all"); ok {
		root.StaticDeps = nil
		for _, fn := range fileNodes {
			g.AddStaticDependency(root, fn, false)
		}
		return root, nil
	}

	root, err := g.CreateNode("all", nbuildpkg.AliasNode, graph.AliasBuilder{}, "")
	if err != nil {
		return nil, err
	}
	for _, fn := range fileNodes {
		g.AddStaticDependency(root, fn, false)
	}
	return root, nil
}

func newBuilderForRecord(rec ngdb.NodeRecord) graph.Builder {
	switch rec.Type {
	case nbuildpkg.FileNode:
		return &graph.FileBuilder{}
	case nbuildpkg.AliasNode:
		return graph.AliasBuilder{}
	case nbuildpkg.ProxyNode:
		return graph.ProxyBuilder{}
	case nbuildpkg.CopyFileNode:
		return &graph.CopyFileBuilder{}
	default:
		return graph.AliasBuilder{}
	}
}
