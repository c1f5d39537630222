package niche

import (
	"embed"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/MimeLyc/reelforge/pkg/log"
	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yaml
var builtinFiles embed.FS

// Registry is a read-mostly lookup of profiles by id.
type Registry struct {
	mu        sync.RWMutex
	profiles  map[string]Profile
	defaultID string
}

func NewRegistry(defaultID string, profiles ...Profile) (*Registry, error) {
	r := &Registry{
		profiles:  make(map[string]Profile, len(profiles)),
		defaultID: defaultID,
	}
	for _, p := range profiles {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	if defaultID != "" && !r.Has(defaultID) {
		return nil, fmt.Errorf("default niche %q is not registered (available: %s)",
			defaultID, strings.Join(r.IDs(), ", "))
	}
	return r, nil
}

// NewDefaultRegistry loads the built-in profiles and, when extraFile is set,
// the operator's YAML profiles on top of them.
func NewDefaultRegistry(defaultID string, extraFile string) (*Registry, error) {
	profiles, err := Builtin()
	if err != nil {
		return nil, err
	}
	if extraFile != "" {
		extra, err := LoadFile(extraFile)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, extra...)
	}
	return NewRegistry(defaultID, profiles...)
}

// Register adds or replaces a profile after validating it.
func (r *Registry) Register(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.profiles[p.ID] = p
	r.mu.Unlock()
	log.Info("Niche profile loaded: %s (%s)", p.ID, p.Name)
	return nil
}

func (r *Registry) Get(id string) (Profile, error) {
	r.mu.RLock()
	p, ok := r.profiles[id]
	r.mu.RUnlock()
	if !ok {
		return Profile{}, fmt.Errorf("unknown niche profile %q (available: %s)", id, strings.Join(r.IDs(), ", "))
	}
	return p, nil
}

// Resolve falls back to the default profile when id is empty.
func (r *Registry) Resolve(id string) (Profile, error) {
	if strings.TrimSpace(id) == "" {
		id = r.DefaultID()
	}
	return r.Get(id)
}

func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.profiles[id]
	return ok
}

func (r *Registry) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultID
}

// SetDefault changes the fallback profile id.
func (r *Registry) SetDefault(id string) error {
	if !r.Has(id) {
		return fmt.Errorf("unknown niche profile %q", id)
	}
	r.mu.Lock()
	r.defaultID = id
	r.mu.Unlock()
	return nil
}

func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (r *Registry) All() []Profile {
	ids := r.IDs()
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]Profile, 0, len(ids))
	for _, id := range ids {
		ret = append(ret, r.profiles[id])
	}
	return ret
}

// Builtin returns the profiles compiled into the binary.
func Builtin() ([]Profile, error) {
	entries, err := builtinFiles.ReadDir("profiles")
	if err != nil {
		return nil, fmt.Errorf("read builtin profiles: %w", err)
	}
	ret := make([]Profile, 0, len(entries))
	for _, entry := range entries {
		data, err := builtinFiles.ReadFile(path.Join("profiles", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read builtin profile %s: %w", entry.Name(), err)
		}
		var p Profile
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse builtin profile %s: %w", entry.Name(), err)
		}
		ret = append(ret, p)
	}
	return ret, nil
}

type profileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadFile reads a YAML document of the form `profiles: [...]`.
func LoadFile(filePath string) ([]Profile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read niche profiles: %w", err)
	}
	var doc profileFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse niche profiles %s: %w", filePath, err)
	}
	if len(doc.Profiles) == 0 {
		return nil, fmt.Errorf("niche profiles file %s defines no profiles", filePath)
	}
	return doc.Profiles, nil
}
