package compose

// ServiceDefinition describes one named service in the workspace: the
// solution it lives in, its backing assemblies, and the base addresses
// callers reach it through.
type ServiceDefinition struct {
	Name          string
	Solution      string
	AssemblyNames []string
	BaseAddresses map[string]string
}

// Binding is a workspace-level statement that a caller's client type
// talks to a target service (flow.map.json "bindings").
type Binding struct {
	Caller       string
	Client       string
	TargetService string
}

// WorkspaceDefinition is the workspace loader's output: root, solution
// list, service definitions, client->service bindings.
type WorkspaceDefinition struct {
	RootPath      string
	SolutionPaths []string
	Services      map[string]*ServiceDefinition
	Bindings      []Binding

	byAssembly map[string][]*ServiceDefinition
	byBaseURL  map[string][]*ServiceDefinition
}

// EmptyWorkspace returns a valid, empty workspace.
func EmptyWorkspace() *WorkspaceDefinition {
	return &WorkspaceDefinition{Services: map[string]*ServiceDefinition{}}
}

func (w *WorkspaceDefinition) servicesByAssembly() map[string][]*ServiceDefinition {
	if w.byAssembly != nil {
		return w.byAssembly
	}
	idx := map[string][]*ServiceDefinition{}
	for _, svc := range w.Services {
		for _, asm := range svc.AssemblyNames {
			idx[asm] = append(idx[asm], svc)
		}
	}
	w.byAssembly = idx
	return idx
}

func (w *WorkspaceDefinition) servicesByBaseURL() map[string][]*ServiceDefinition {
	if w.byBaseURL != nil {
		return w.byBaseURL
	}
	idx := map[string][]*ServiceDefinition{}
	for _, svc := range w.Services {
		for _, url := range svc.BaseAddresses {
			key := normalizeBaseURL(url)
			idx[key] = append(idx[key], svc)
		}
	}
	w.byBaseURL = idx
	return idx
}

// Merge applies the additive merge rule: a later source
// updates existing entries additively (union assembly names, last-writer-
// wins per base-address key, first-non-null solution).
func (w *WorkspaceDefinition) Merge(other *WorkspaceDefinition) {
	if other == nil {
		return
	}
	if w.RootPath == "" {
		w.RootPath = other.RootPath
	}
	if len(other.SolutionPaths) > 0 {
		w.SolutionPaths = append(w.SolutionPaths, other.SolutionPaths...)
	}
	if w.Services == nil {
		w.Services = map[string]*ServiceDefinition{}
	}
	for name, svc := range other.Services {
		existing, ok := w.Services[name]
		if !ok {
			w.Services[name] = &ServiceDefinition{
				Name:          svc.Name,
				Solution:      svc.Solution,
				AssemblyNames: append([]string{}, svc.AssemblyNames...),
				BaseAddresses: copyStringMap(svc.BaseAddresses),
			}
			continue
		}
		if existing.Solution == "" {
			existing.Solution = svc.Solution
		}
		existing.AssemblyNames = unionStrings(existing.AssemblyNames, svc.AssemblyNames)
		if existing.BaseAddresses == nil {
			existing.BaseAddresses = map[string]string{}
		}
		for k, v := range svc.BaseAddresses {
			existing.BaseAddresses[k] = v
		}
	}
	w.Bindings = append(w.Bindings, other.Bindings...)
	w.byAssembly = nil
	w.byBaseURL = nil
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func unionStrings(a, b []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
