// Package registry discovers the test roots of a competition-simulator
// checkout: the shared tests directory plus one root per controller
// directory. Discovery is dynamic so newly added controllers are picked
// up on the next run without code changes.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/srobo-infra/sim-harness/types"
)

// Well-known directory names inside the repository root.
const (
	TestsDirName       = "tests"
	ControllersDirName = "controllers"
	StubsDirName       = "stubs"
	ModulesDirName     = "modules"

	// ConfigFileName is the optional per-repo harness config.
	ConfigFileName = "harness.yaml"
)

// HarnessConfig is the optional on-disk configuration loaded from
// harness.yaml at the repository root.
type HarnessConfig struct {
	Interpreter      string   `yaml:"interpreter,omitempty"`
	ExtraSearchPaths []string `yaml:"extra_search_paths,omitempty"`
	SuccessMarker    string   `yaml:"success_marker,omitempty"`
}

// Config contains registry configuration
type Config struct {
	Log     *zap.SugaredLogger
	RootDir string
}

// Registry manages discovered test roots and the interpreter search path
type Registry struct {
	config      Config
	fileConfig  HarnessConfig
	roots       []types.ControllerMetadata
	searchPaths []string
	mu          sync.RWMutex
}

// NewRegistry creates a new registry instance and performs the initial
// discovery pass.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.RootDir == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop().Sugar()
	}

	r := &Registry{config: cfg}

	if err := r.Reload(); err != nil {
		return nil, fmt.Errorf("failed to discover test roots: %w", err)
	}

	cfg.Log.Debugw("Registry loaded", "len(roots)", len(r.roots))

	return r, nil
}

// Reload re-runs discovery against the filesystem. It is called before
// every run so controllers added between interval runs are picked up.
func (r *Registry) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rootDir, err := filepath.Abs(r.config.RootDir)
	if err != nil {
		return fmt.Errorf("failed to resolve root directory %q: %w", r.config.RootDir, err)
	}

	info, err := os.Stat(rootDir)
	if err != nil {
		return fmt.Errorf("root directory %q: %w", rootDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root %q is not a directory", rootDir)
	}

	fileConfig, err := loadHarnessConfig(filepath.Join(rootDir, ConfigFileName))
	if err != nil {
		return err
	}

	roots, err := discoverRoots(rootDir)
	if err != nil {
		return err
	}

	r.fileConfig = fileConfig
	r.roots = roots
	r.searchPaths = buildSearchPaths(rootDir, fileConfig)
	return nil
}

// GetRoots returns the discovered test roots: the primary root first,
// then controllers in lexicographic order.
func (r *Registry) GetRoots() []types.ControllerMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roots := make([]types.ControllerMetadata, len(r.roots))
	copy(roots, r.roots)
	return roots
}

// GetSearchPaths returns the directories every test invocation must be
// able to import from (stubs, modules, plus any configured extras).
func (r *Registry) GetSearchPaths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, len(r.searchPaths))
	copy(paths, r.searchPaths)
	return paths
}

// GetHarnessConfig returns the optional file config loaded from the root.
func (r *Registry) GetHarnessConfig() HarnessConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fileConfig
}

// GetConfig returns the registry configuration
func (r *Registry) GetConfig() Config {
	return r.config
}

func discoverRoots(rootDir string) ([]types.ControllerMetadata, error) {
	var roots []types.ControllerMetadata

	primary := filepath.Join(rootDir, TestsDirName)
	if info, err := os.Stat(primary); err != nil {
		return nil, fmt.Errorf("primary test directory %q: %w", primary, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("primary test path %q is not a directory", primary)
	}
	roots = append(roots, types.ControllerMetadata{
		Kind: types.RootKindPrimary,
		Dir:  primary,
	})

	controllersDir := filepath.Join(rootDir, ControllersDirName)
	entries, err := os.ReadDir(controllersDir)
	if err != nil {
		if os.IsNotExist(err) {
			// No controllers at all: the primary root alone decides the run.
			return roots, nil
		}
		return nil, fmt.Errorf("reading controllers directory %q: %w", controllersDir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		roots = append(roots, types.ControllerMetadata{
			ID:   name,
			Kind: types.RootKindController,
			Dir:  filepath.Join(controllersDir, name),
		})
	}

	return roots, nil
}

func buildSearchPaths(rootDir string, cfg HarnessConfig) []string {
	paths := []string{
		filepath.Join(rootDir, StubsDirName),
		filepath.Join(rootDir, ModulesDirName),
	}
	for _, extra := range cfg.ExtraSearchPaths {
		if !filepath.IsAbs(extra) {
			extra = filepath.Join(rootDir, extra)
		}
		paths = append(paths, extra)
	}
	return paths
}

// LoadHarnessConfig loads the optional harness.yaml from a repository
// root without running discovery, for commands that only need the file
// settings.
func LoadHarnessConfig(rootDir string) (HarnessConfig, error) {
	return loadHarnessConfig(filepath.Join(rootDir, ConfigFileName))
}

// loadHarnessConfig loads the optional harness.yaml; a missing file is
// not an error.
func loadHarnessConfig(path string) (HarnessConfig, error) {
	var cfg HarnessConfig

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}
