// Package workspace loads workspace definitions: flow.workspace.json /
// flow.map.json read from a workspace root and, failing that, solution
// files discovered by scanning for *.sln beneath the root.
package workspace

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"

	"github.com/r-dutton/flowlens/internal/compose"
)

// LoaderError wraps IO/JSON failures from workspace files: logged,
// non-fatal, loading continues with a best-effort subset.
type LoaderError struct {
	Path string
	Err  error
}

func (e *LoaderError) Error() string { return fmt.Sprintf("workspace: %s: %v", e.Path, e.Err) }
func (e *LoaderError) Unwrap() error { return e.Err }

type workspaceFile struct {
	Solutions []string                      `json:"solutions"`
	Services  map[string]workspaceServiceJSON `json:"services"`
}

type workspaceServiceJSON struct {
	Solution      string            `json:"solution"`
	AssemblyNames []string          `json:"assembly_names"`
	BaseAddresses map[string]string `json:"base_addresses"`
}

type mapFile struct {
	Services map[string]mapServiceJSON `json:"services"`
	Bindings []mapBindingJSON          `json:"bindings"`
}

type mapServiceJSON struct {
	Solution      string            `json:"solution"`
	AssemblyNames []string          `json:"assembly_names"`
	BaseURLs      map[string]string `json:"base_urls"`
}

type mapBindingJSON struct {
	Caller        string `json:"caller"`
	Client        string `json:"client"`
	TargetService string `json:"target_service"`
}

// Load reads flow.workspace.json and flow.map.json from root (either,
// both, or neither may exist), merges them additively, resolves relative
// paths against root, and falls back to scanning for *.sln when neither
// file declares solutions. IO/JSON errors are logged and the load
// continues with whatever subset parsed; Load itself never fails.
func Load(root string) *compose.WorkspaceDefinition {
	return LoadWithEnv(root, true)
}

// LoadWithEnv is Load with control over whether a root-level .env file is
// applied first (disabled in tests that don't want process-wide env
// mutation).
func LoadWithEnv(root string, loadEnv bool) *compose.WorkspaceDefinition {
	if loadEnv {
		_ = godotenv.Load(filepath.Join(root, ".env"))
	}

	def := compose.EmptyWorkspace()
	def.RootPath = root

	if wf, err := loadWorkspaceFile(root); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("%v", &LoaderError{Path: "flow.workspace.json", Err: err})
		}
	} else if wf != nil {
		def.Merge(wf)
	}

	if mf, err := loadMapFile(root); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("%v", &LoaderError{Path: "flow.map.json", Err: err})
		}
	} else if mf != nil {
		def.Merge(mf)
	}

	if len(def.SolutionPaths) == 0 {
		def.SolutionPaths = discoverSolutions(root)
	}
	return def
}

func loadWorkspaceFile(root string) (*compose.WorkspaceDefinition, error) {
	path := filepath.Join(root, "flow.workspace.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var wf workspaceFile
	if err := json.Unmarshal(raw, &wf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := compose.EmptyWorkspace()
	for _, s := range wf.Solutions {
		out.SolutionPaths = append(out.SolutionPaths, resolvePath(root, s))
	}
	for name, svc := range wf.Services {
		out.Services[name] = &compose.ServiceDefinition{
			Name:          name,
			Solution:      resolvePath(root, svc.Solution),
			AssemblyNames: svc.AssemblyNames,
			BaseAddresses: svc.BaseAddresses,
		}
	}
	return out, nil
}

func loadMapFile(root string) (*compose.WorkspaceDefinition, error) {
	path := filepath.Join(root, "flow.map.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var mf mapFile
	if err := json.Unmarshal(raw, &mf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	out := compose.EmptyWorkspace()
	for name, svc := range mf.Services {
		out.Services[name] = &compose.ServiceDefinition{
			Name:          name,
			Solution:      resolvePath(root, svc.Solution),
			AssemblyNames: svc.AssemblyNames,
			BaseAddresses: svc.BaseURLs,
		}
	}
	for _, b := range mf.Bindings {
		out.Bindings = append(out.Bindings, compose.Binding{
			Caller: b.Caller, Client: b.Client, TargetService: b.TargetService,
		})
	}
	return out, nil
}

func resolvePath(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// discoverSolutions scans recursively under root for *.sln files,
// excluding any path containing a bin/obj/.git path component.
func discoverSolutions(root string) []string {
	var out []string
	excluded := []string{"bin", "obj", ".git"}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			for _, ex := range excluded {
				if name == ex {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if matched, _ := doublestar.Match("*.sln", filepath.Base(path)); matched {
			if !containsExcludedComponent(path, excluded) {
				out = append(out, path)
			}
		}
		return nil
	})
	return out
}

func containsExcludedComponent(path string, excluded []string) bool {
	parts := strings.Split(filepath.ToSlash(path), "/")
	for _, part := range parts {
		for _, ex := range excluded {
			if part == ex {
				return true
			}
		}
	}
	return false
}
