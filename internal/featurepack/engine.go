package featurepack

import (
	"compress/gzip"
	"context"
	_ "crypto/sha256" // Registers the digest algorithm.
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/nlepage/go-tarfs"
	"github.com/opencontainers/go-digest"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/logger"
)

// ConfigDir is the installation directory generated configurations are written to.
const ConfigDir = "configuration"

var errDependencyCycle = errors.New("feature pack dependency cycle")

// Fetcher provides local copies of concrete artifacts.
type Fetcher interface {
	Fetch(ctx context.Context, ref installation.ArtifactRef) (string, error)
}

type pack struct {
	ref        installation.ArtifactRef
	descriptor *Descriptor
	fsys       fs.FS
}

// Engine reads feature packs through a Fetcher. Loaded archives are kept for
// the lifetime of the engine.
type Engine struct {
	fetcher Fetcher

	mu    sync.Mutex
	packs map[string]*pack
}

// NewEngine creates an engine.
func NewEngine(fetcher Fetcher) *Engine {
	return &Engine{
		fetcher: fetcher,
		packs:   make(map[string]*pack),
	}
}

func (e *Engine) load(ctx context.Context, ref installation.ArtifactRef) (*pack, error) {
	ref.Extension = installation.FeaturePackExtension

	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.packs[ref.String()]; ok {
		return p, nil
	}

	local, err := e.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}

	fsys, err := openArchive(local)
	if err != nil {
		return nil, fmt.Errorf("open feature pack %s: %w", ref, err)
	}

	raw, err := fs.ReadFile(fsys, descriptorFile)
	if err != nil {
		return nil, fmt.Errorf("read feature pack %s: %w", ref, err)
	}

	descriptor, err := parseDescriptor(raw, ref)
	if err != nil {
		return nil, err
	}

	p := &pack{ref: ref, descriptor: descriptor, fsys: fsys}
	e.packs[ref.String()] = p

	return p, nil
}

func openArchive(file string) (fs.FS, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}

	defer gz.Close()

	return tarfs.New(gz)
}

// Requirements lists the streams a concrete feature pack needs: its
// artifacts and its feature pack dependencies.
func (e *Engine) Requirements(ctx context.Context, ref installation.ArtifactRef) ([]installation.ArtifactRef, error) {
	p, err := e.load(ctx, ref)
	if err != nil {
		return nil, err
	}

	refs := make([]installation.ArtifactRef, 0, len(p.descriptor.Artifacts)+len(p.descriptor.Dependencies))
	for _, a := range p.descriptor.Artifacts {
		refs = append(refs, a.Ref())
	}

	deps, err := p.descriptor.dependencyRefs()
	if err != nil {
		return nil, err
	}

	return append(refs, deps...), nil
}

// Layers returns the layers per model offered by producer and its
// dependencies, with versions taken from m.
func (e *Engine) Layers(ctx context.Context, producer string, m *installation.Manifest) (map[string][]string, error) {
	order, err := e.order(ctx, []string{producer}, m)
	if err != nil {
		return nil, err
	}

	union := make(map[string][]string)

	for _, p := range order {
		for model, layers := range p.descriptor.Layers {
			for _, layer := range layers {
				if !slices.Contains(union[model], layer) {
					union[model] = append(union[model], layer)
				}
			}
		}
	}

	for model := range union {
		sort.Strings(union[model])
	}

	return union, nil
}

// order returns the feature packs reachable from producers, dependencies first.
func (e *Engine) order(ctx context.Context, producers []string, m *installation.Manifest) ([]*pack, error) {
	var (
		ordered  []*pack
		done     = make(map[string]bool)
		visiting = make(map[string]bool)
	)

	var visit func(producer string) error
	visit = func(producer string) error {
		if done[producer] {
			return nil
		}

		if visiting[producer] {
			return fmt.Errorf("%w at %s", errDependencyCycle, producer)
		}

		visiting[producer] = true

		ref, err := (installation.FeaturePackConfig{Producer: producer}).Ref()
		if err != nil {
			return err
		}

		stream, ok := m.Find(producer)
		if !ok {
			return &installation.NoStreamFoundError{Artifact: ref}
		}

		p, err := e.load(ctx, ref.WithVersion(stream.Version))
		if err != nil {
			return err
		}

		for _, dep := range p.descriptor.Dependencies {
			if err = visit(dep); err != nil {
				return err
			}
		}

		visiting[producer] = false
		done[producer] = true
		ordered = append(ordered, p)

		return nil
	}

	for _, producer := range producers {
		if err := visit(producer); err != nil {
			return nil, err
		}
	}

	return ordered, nil
}

// Provision materializes cfg into target using the versions of m and
// returns the inventory of every written file.
func (e *Engine) Provision(
	ctx context.Context,
	target string,
	cfg *installation.ProvisioningConfig,
	m *installation.Manifest,
) (installation.FileInventory, error) {
	ctx = logger.WithName(ctx, "featurepack")

	order, err := e.order(ctx, cfg.Producers(), m)
	if err != nil {
		return nil, err
	}

	written := make(map[string]installation.FileRecord)

	for _, p := range order {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		fpConfig, _ := cfg.FeaturePack(p.descriptor.Producer)

		logger.DebugKV(ctx, "Provisioning feature pack", "feature_pack", p.ref.String())

		if err = provisionContent(target, p, fpConfig, written); err != nil {
			return nil, err
		}

		if err = e.provisionArtifacts(ctx, target, p, m, written); err != nil {
			return nil, err
		}
	}

	for _, cm := range cfg.Configs {
		if err = renderConfig(target, cm, written); err != nil {
			return nil, err
		}
	}

	inventory := make(installation.FileInventory, 0, len(written))
	for _, rec := range written {
		inventory = append(inventory, rec)
	}

	inventory.Sort()

	logger.InfoKV(ctx, "Provisioning finished", "feature_packs", len(order), "files", len(inventory))

	return inventory, nil
}

func selected(pkg Package, cfg installation.FeaturePackConfig) bool {
	if slices.Contains(cfg.ExcludedPackages, pkg.Name) {
		return false
	}

	return !pkg.Optional || slices.Contains(cfg.IncludedPackages, pkg.Name)
}

func provisionContent(
	target string,
	p *pack,
	cfg installation.FeaturePackConfig,
	written map[string]installation.FileRecord,
) error {
	return fs.WalkDir(p.fsys, contentDir, func(name string, entry fs.DirEntry, err error) error {
		if errors.Is(err, fs.ErrNotExist) && name == contentDir {
			return fs.SkipDir
		}

		if err != nil {
			return err
		}

		if entry.IsDir() {
			return nil
		}

		rel := strings.TrimPrefix(name, contentDir+"/")
		if !isLocal(rel) {
			return fmt.Errorf("%s: %w: %q", p.ref, errUnsafePath, rel)
		}

		if pkg, ok := p.descriptor.packageOf(rel); ok && !selected(pkg, cfg) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		src, err := p.fsys.Open(name)
		if err != nil {
			return err
		}

		defer src.Close()

		d, err := writeFile(target, rel, src, info.Mode().Perm())
		if err != nil {
			return err
		}

		written[rel] = installation.FileRecord{Path: rel, Digest: d.String(), Producer: p.descriptor.Producer}

		return nil
	})
}

func (e *Engine) provisionArtifacts(
	ctx context.Context,
	target string,
	p *pack,
	m *installation.Manifest,
	written map[string]installation.FileRecord,
) error {
	for _, a := range p.descriptor.Artifacts {
		ref := a.Ref()

		stream, ok := m.Find(ref.Key())
		if !ok {
			return &installation.NoStreamFoundError{Artifact: ref}
		}

		ref.Version = stream.Version

		local, err := e.fetcher.Fetch(ctx, ref)
		if err != nil {
			return err
		}

		rel := path.Join(a.Path, ref.FileName())

		if err = copyInto(target, rel, local, p.descriptor.Producer, written); err != nil {
			return err
		}
	}

	return nil
}

func copyInto(target, rel, local, producer string, written map[string]installation.FileRecord) error {
	src, err := os.Open(local)
	if err != nil {
		return err
	}

	defer src.Close()

	d, err := writeFile(target, rel, src, defaultFileMode)
	if err != nil {
		return err
	}

	written[rel] = installation.FileRecord{Path: rel, Digest: d.String(), Producer: producer}

	return nil
}

type renderedConfig struct {
	Model  string   `yaml:"model"`
	Name   string   `yaml:"name"`
	Layers []string `yaml:"layers"`
}

// renderConfig writes configuration/<model>/<name> listing the effective layers.
func renderConfig(target string, cm installation.ConfigModel, written map[string]installation.FileRecord) error {
	layers := make([]string, 0, len(cm.IncludedLayers))

	for _, layer := range cm.IncludedLayers {
		if !slices.Contains(cm.ExcludedLayers, layer) {
			layers = append(layers, layer)
		}
	}

	raw, err := yaml.Marshal(renderedConfig{Model: cm.Model, Name: cm.Name, Layers: layers})
	if err != nil {
		return fmt.Errorf("render config %s: %w", cm.ID(), err)
	}

	rel := path.Join(ConfigDir, cm.Model, cm.Name)
	if !isLocal(rel) {
		return fmt.Errorf("config %s: %w", cm.ID(), errUnsafePath)
	}

	d, err := writeFile(target, rel, strings.NewReader(string(raw)), defaultFileMode)
	if err != nil {
		return err
	}

	written[rel] = installation.FileRecord{Path: rel, Digest: d.String()}

	return nil
}

const defaultFileMode fs.FileMode = 0o644

// writeFile copies src to target/rel with the given permissions. Archive
// entries without permission bits get defaultFileMode.
func writeFile(target, rel string, src io.Reader, mode fs.FileMode) (digest.Digest, error) {
	dst := filepath.Join(target, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", rel, err)
	}

	if mode == 0 {
		mode = defaultFileMode
	}

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", rel, err)
	}

	// An earlier pack may have created the file with other permissions.
	if err = f.Chmod(mode); err != nil {
		f.Close()

		return "", fmt.Errorf("chmod %s: %w", rel, err)
	}

	digester := digest.Canonical.Digester()

	if _, err = io.Copy(io.MultiWriter(f, digester.Hash()), src); err != nil {
		f.Close()

		return "", fmt.Errorf("write %s: %w", rel, err)
	}

	if err = f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", rel, err)
	}

	return digester.Digest(), nil
}
