package scanner

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
)

// deniedModules matches host capability modules a template may never reach,
// with or without the "node:" scheme.
var deniedModules = regexp.MustCompile(
	`^(?:node:)?(?:fs|fs/promises|child_process|os|net|http|https|http2|vm|dgram|tls|cluster|worker_threads)$`,
)

// isDeniedModule reports whether path names a host capability module.
func isDeniedModule(path string) bool {
	return deniedModules.MatchString(strings.TrimSpace(path))
}

// moduleRef is one import record found by the bundler.
type moduleRef struct {
	Path string
	Kind api.ResolveKind
}

// moduleGraph is what the bundler learned about a template's dependencies.
type moduleGraph struct {
	refs []moduleRef
	// esm is true when the bundler classified the source as an ES module
	esm bool
}

// metafile is the subset of esbuild's metafile the scanner reads.
type metafile struct {
	Inputs map[string]struct {
		Format string `json:"format"`
	} `json:"inputs"`
}

// buildModuleGraph runs the bundler over source with every import marked
// external, recording each reference. Nothing is written to disk.
func buildModuleGraph(source, sourcefile string) (*moduleGraph, error) {
	graph := &moduleGraph{}
	var mu sync.Mutex

	recorder := api.Plugin{
		Name: "module-graph",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: ".*"},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					if args.Kind == api.ResolveEntryPoint {
						return api.OnResolveResult{}, nil
					}
					mu.Lock()
					graph.refs = append(graph.refs, moduleRef{Path: args.Path, Kind: args.Kind})
					mu.Unlock()
					return api.OnResolveResult{Path: args.Path, External: true}, nil
				})
		},
	}

	result := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   source,
			Sourcefile: sourcefile,
			Loader:     api.LoaderJSX,
		},
		Bundle:   true,
		Write:    false,
		Metafile: true,
		Outfile:  "scan.js",
		Format:   api.FormatCommonJS,
		Platform: api.PlatformNeutral,
		LogLevel: api.LogLevelSilent,
		Plugins:  []api.Plugin{recorder},
	})
	if len(result.Errors) > 0 {
		return nil, messagesError(result.Errors)
	}

	// Resolve callbacks may run concurrently; order by appearance kind then path.
	sort.SliceStable(graph.refs, func(i, j int) bool {
		if graph.refs[i].Kind != graph.refs[j].Kind {
			return graph.refs[i].Kind < graph.refs[j].Kind
		}
		return graph.refs[i].Path < graph.refs[j].Path
	})

	var meta metafile
	if err := json.Unmarshal([]byte(result.Metafile), &meta); err != nil {
		return nil, fmt.Errorf("decoding bundler metafile: %w", err)
	}
	for _, input := range meta.Inputs {
		if input.Format == "esm" {
			graph.esm = true
		}
	}
	for _, ref := range graph.refs {
		if ref.Kind == api.ResolveJSImportStatement {
			graph.esm = true
		}
	}

	return graph, nil
}

// messagesError flattens esbuild diagnostics into one error.
func messagesError(msgs []api.Message) error {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			parts = append(parts, fmt.Sprintf("%d:%d: %s", m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		parts = append(parts, m.Text)
	}
	return fmt.Errorf("%s", strings.Join(parts, "; "))
}
