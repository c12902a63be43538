package intent

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/api/schemas"
)

// pack is one intent collection on disk: a directory of .oil files (the
// shape git installs produce) or a single top-level .oil file.
type pack struct {
	name    string
	path    string
	loaded  bool
	intents map[string]*Intent
}

// Packs lists packs found under the packs directory plus anything
// already loaded, sorted by name.
func (r *Registry) Packs() []schemas.PackInfo {
	r.mu.Lock()
	r.discoverLocked()
	snapshot := make([]schemas.PackInfo, 0, len(r.packs))
	for _, n := range sortedPackNames(r.packs) {
		p := r.packs[n]
		snapshot = append(snapshot, schemas.PackInfo{
			Name:    p.name,
			Loaded:  p.loaded,
			Intents: len(p.intents),
			Path:    p.path,
		})
	}
	r.mu.Unlock()
	return snapshot
}

// discoverLocked refreshes the pack table from the packs directory.
// Entries for packs removed from disk stay only while loaded.
func (r *Registry) discoverLocked() {
	if r.dir == "" {
		return
	}
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return
	}
	onDisk := make(map[string]string)
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() {
			onDisk[name] = filepath.Join(r.dir, name)
		} else if strings.HasSuffix(name, ".oil") {
			onDisk[strings.TrimSuffix(name, ".oil")] = filepath.Join(r.dir, name)
		}
	}
	for name, path := range onDisk {
		if p, ok := r.packs[name]; ok {
			p.path = path
			continue
		}
		r.packs[name] = &pack{name: name, path: path, intents: make(map[string]*Intent)}
	}
	for name, p := range r.packs {
		if _, ok := onDisk[name]; !ok && !p.loaded {
			delete(r.packs, name)
		}
	}
}

// LoadPack reads (or re-reads) a pack's intent files and makes them
// resolvable. Returns the number of intents loaded.
func (r *Registry) LoadPack(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discoverLocked()
	p, ok := r.packs[name]
	if !ok {
		return 0, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("no pack named %q in %s", name, r.dir),
		}
	}
	intents, err := parsePack(p.path, name)
	if err != nil {
		return 0, err
	}
	p.intents = intents
	p.loaded = true
	r.log.Info("pack loaded", zap.String("pack", name), zap.Int("intents", len(intents)))
	return len(intents), nil
}

// UnloadPack forgets a pack's intents without touching its files.
func (r *Registry) UnloadPack(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.packs[name]
	if !ok || !p.loaded {
		return &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("pack %q is not loaded", name),
		}
	}
	p.loaded = false
	p.intents = make(map[string]*Intent)
	return nil
}

// InstallPack clones a git repository into the packs directory and loads
// it. The pack name is the repository basename.
func (r *Registry) InstallPack(ctx context.Context, url string) (string, int, error) {
	name := packNameFromURL(url)
	if name == "" {
		return "", 0, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("cannot derive a pack name from %q", url),
		}
	}
	if r.dir == "" {
		return "", 0, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: "no packs directory configured (set intents.packs_dir)",
		}
	}
	target := filepath.Join(r.dir, name)
	if _, err := os.Stat(target); err == nil {
		return "", 0, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("pack %q is already installed; pack load %s to reload it", name, name),
		}
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", 0, &schemas.ExecError{Code: schemas.CodeIOError, Message: err.Error()}
	}

	r.log.Info("installing pack", zap.String("url", url), zap.String("into", target))
	_, err := git.PlainCloneContext(ctx, target, false, &git.CloneOptions{
		URL:   url,
		Depth: 1,
	})
	if err != nil {
		_ = os.RemoveAll(target)
		return "", 0, &schemas.ExecError{
			Code:    schemas.CodeIOError,
			Message: fmt.Sprintf("clone %s: %v", url, err),
		}
	}

	count, err := r.LoadPack(name)
	if err != nil {
		return name, 0, err
	}
	return name, count, nil
}

func packNameFromURL(url string) string {
	trimmed := strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")
	idx := strings.LastIndexAny(trimmed, "/:")
	name := trimmed[idx+1:]
	if !namePattern.MatchString(name) {
		return ""
	}
	return name
}

// parsePack reads every .oil file of a pack. A single-file pack parses
// just that file.
func parsePack(path, source string) (map[string]*Intent, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &schemas.ExecError{Code: schemas.CodeIOError, Message: err.Error()}
	}
	files := []string{path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.oil"))
		if err != nil {
			return nil, &schemas.ExecError{Code: schemas.CodeIOError, Message: err.Error()}
		}
		sort.Strings(files)
	}
	if len(files) == 0 {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("pack %q has no .oil files", source),
		}
	}
	intents := make(map[string]*Intent)
	for _, f := range files {
		if err := parsePackFile(f, source, intents); err != nil {
			return nil, err
		}
	}
	return intents, nil
}

// parsePackFile accumulates define..end blocks from one file. Anything
// outside a block other than comments and blank lines is an error, so a
// half-written pack fails at load instead of at run time.
func parsePackFile(path, source string, into map[string]*Intent) error {
	f, err := os.Open(path)
	if err != nil {
		return &schemas.ExecError{Code: schemas.CodeIOError, Message: err.Error()}
	}
	defer f.Close()

	fail := func(lineNo int, format string, args ...any) error {
		return &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("%s:%d: %s", filepath.Base(path), lineNo, fmt.Sprintf(format, args...)),
		}
	}

	var (
		current *Intent
		lineNo  int
	)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "define "):
			if current != nil {
				return fail(lineNo, "define inside define %q", current.Name)
			}
			name := strings.TrimSpace(strings.TrimPrefix(line, "define "))
			if !namePattern.MatchString(name) {
				return fail(lineNo, "invalid intent name %q", name)
			}
			current = &Intent{Name: name, Source: source}
		case line == "end":
			if current == nil {
				return fail(lineNo, "end without define")
			}
			if len(current.Lines) == 0 {
				return fail(lineNo, "intent %q has no commands", current.Name)
			}
			current.Params = scanParams(current.Lines)
			into[current.Name] = current
			current = nil
		default:
			if current == nil {
				return fail(lineNo, "expected define, got %q", line)
			}
			current.Lines = append(current.Lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return &schemas.ExecError{Code: schemas.CodeIOError, Message: err.Error()}
	}
	if current != nil {
		return fail(lineNo, "intent %q is missing end", current.Name)
	}
	return nil
}
