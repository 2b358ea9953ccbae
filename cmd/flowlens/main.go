// Command flowlens discovers a workspace's solutions, builds and
// composes a flow graph across every project it finds, and optionally
// dumps the result as JSON.
//
// Flag handling runs an explicit pre-pass that recognizes "option
// requires a value" before cobra ever sees the arguments, since the
// required error wording ("Option '<opt>' requires a value") doesn't
// match cobra/pflag's own.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/r-dutton/flowlens/internal/compose"
	"github.com/r-dutton/flowlens/internal/dump"
	"github.com/r-dutton/flowlens/internal/flowgraph"
	"github.com/r-dutton/flowlens/internal/store"
	"github.com/r-dutton/flowlens/internal/tree"
	"github.com/r-dutton/flowlens/internal/workspace"
)

// flagsNeedingValue lists every long option that takes a value, for the
// pre-pass value-required check.
var flagsNeedingValue = map[string]bool{
	"--workspace": true, "--solution": true, "--solutions": true,
	"--flow": true, "--flows": true, "--max-depth": true,
	"--concurrency": true, "--dump-graph": true, "--output-dir": true,
}

// checkOptionValues enforces that options with no following value exit
// with code 1 and a message: a value-taking long option that is the
// last argument, or immediately followed by another "--"-prefixed
// option, is an error.
func checkOptionValues(args []string) error {
	for i, a := range args {
		name := a
		if eq := strings.IndexByte(a, '='); eq >= 0 {
			name = a[:eq]
			continue // "--flag=value" form always carries its value
		}
		if !flagsNeedingValue[name] {
			continue
		}
		if i+1 >= len(args) || strings.HasPrefix(args[i+1], "--") {
			return fmt.Errorf("Option '%s' requires a value", name)
		}
	}
	return nil
}

type options struct {
	workspaceRoot string
	solutions     []string
	flowPatterns  []string
	maxDepth      int
	concurrency   int
	dumpGraph     string
	outputDir     string
	storeDSN      string
	builtAt       string
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Build and query the cross-service flow graph of a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlow(opts)
		},
		SilenceUsage: true,
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.workspaceRoot, "workspace", ".", "workspace root directory")
	flags.StringSliceVar(&opts.solutions, "solution", nil, "solution path (repeatable)")
	flags.StringSliceVar(&opts.solutions, "solutions", nil, "comma-separated solution paths")
	flags.StringSliceVar(&opts.flowPatterns, "flow", nil, "glob filtering project/service names (repeatable)")
	flags.StringSliceVar(&opts.flowPatterns, "flows", nil, "comma-separated glob patterns")
	flags.IntVar(&opts.maxDepth, "max-depth", 0, "maximum propagation depth (0 = unlimited)")
	flags.IntVar(&opts.concurrency, "concurrency", 1, "number of compilations to build in parallel")
	flags.StringVar(&opts.dumpGraph, "dump-graph", "", "path to write the composed graph as JSON")
	flags.StringVar(&opts.outputDir, "output-dir", "", "directory to write per-project graph dumps into")
	flags.StringVar(&opts.storeDSN, "store-dsn", "", "sqlite path or libsql URL to persist a graph snapshot into (optional)")
	return cmd
}

func main() {
	if err := checkOptionValues(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runFlow builds one Compilation per discovered project under the
// workspace root, runs the Flow-Graph Builder over each, composes the
// results with cross-service remote augmentation, and writes the dump.
func runFlow(opts *options) error {
	ws := workspace.Load(opts.workspaceRoot)
	if len(opts.solutions) > 0 {
		ws.SolutionPaths = opts.solutions
	}

	projects, err := discoverProjects(opts.workspaceRoot, opts.flowPatterns)
	if err != nil {
		return err
	}

	graphs := buildProjectGraphs(projects, opts)

	composed := compose.Compose(graphs, ws)

	if opts.storeDSN != "" {
		if err := persistSnapshot(opts, composed); err != nil {
			fmt.Fprintf(os.Stderr, "flowlens: snapshot not saved: %v\n", err)
		}
	}

	if opts.dumpGraph != "" {
		if err := dump.WriteFile(opts.dumpGraph, composed); err != nil {
			return fmt.Errorf("writing graph dump: %w", err)
		}
	} else {
		if err := dump.Write(os.Stdout, composed); err != nil {
			return fmt.Errorf("writing graph dump: %w", err)
		}
	}
	return nil
}

type discoveredProject struct {
	name  string
	root  string
	files []string
}

// discoverProjects walks the workspace root for directories containing
// ".go" files, filtering names through the --flow/--flows glob patterns
// via doublestar.
func discoverProjects(root string, patterns []string) ([]discoveredProject, error) {
	byDir := map[string][]string{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			base := info.Name()
			if base == "bin" || base == "obj" || base == ".git" || base == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".go") {
			dir := filepath.Dir(path)
			byDir[dir] = append(byDir[dir], path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover projects: %w", err)
	}

	var out []discoveredProject
	for dir, files := range byDir {
		name := filepath.Base(dir)
		if len(patterns) > 0 && !matchesAny(patterns, name) {
			continue
		}
		out = append(out, discoveredProject{name: name, root: dir, files: files})
	}
	return out, nil
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// buildProjectGraphs builds one compilation/graph per discovered
// project, bounding parallelism to --concurrency with a semaphore
// channel. Results are collected into a slice indexed by project order
// so the composed graph's emission stays independent of goroutine
// scheduling.
func buildProjectGraphs(projects []discoveredProject, opts *options) []*flowgraph.Graph {
	workers := opts.concurrency
	if workers < 1 {
		workers = 1
	}

	results := make([]*flowgraph.Graph, len(projects))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, workers)

	for i, proj := range projects {
		wg.Add(1)
		go func(i int, proj discoveredProject) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			g, err := buildProjectGraph(proj, opts.maxDepth)
			if err != nil {
				fmt.Fprintf(os.Stderr, "flowlens: skipping %s: %v\n", proj.name, err)
				return
			}
			results[i] = g
			if opts.outputDir != "" {
				path := filepath.Join(opts.outputDir, proj.name+".json")
				if err := dump.WriteFile(path, g); err != nil {
					fmt.Fprintf(os.Stderr, "flowlens: writing %s: %v\n", path, err)
				}
			}
		}(i, proj)
	}
	wg.Wait()

	var graphs []*flowgraph.Graph
	for _, g := range results {
		if g != nil {
			graphs = append(graphs, g)
		}
	}
	return graphs
}

func buildProjectGraph(proj discoveredProject, maxDepth int) (*flowgraph.Graph, error) {
	comp := tree.NewCompilation(proj.name)
	for _, f := range proj.files {
		src, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		if err := comp.AddSource(f, src); err != nil {
			return nil, err
		}
	}
	prov := tree.NewProvider(comp)
	builder := flowgraph.NewBuilder(prov, proj.name, proj.name)
	builder.MaxDepth = maxDepth
	return builder.Build(comp.SyntaxTrees(), comp.GlobalNamespace()), nil
}

// parseConcurrency is exercised by tests for the --concurrency value
// parsing path without spinning up cobra.
func parseConcurrency(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid --concurrency value %q", s)
	}
	return n, nil
}

// persistSnapshot opens the optional graph-snapshot store and saves the
// composed build, timestamped with the instant runFlow was invoked.
func persistSnapshot(opts *options, g *flowgraph.Graph) error {
	s, err := store.Open(opts.storeDSN, false)
	if err != nil {
		return err
	}
	defer s.Close()
	builtAt := opts.builtAt
	if builtAt == "" {
		builtAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err = s.Save(opts.workspaceRoot, builtAt, g)
	return err
}
