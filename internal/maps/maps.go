package maps

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/dtsim/server/internal/actor"
	"github.com/dtsim/server/internal/message"
	"github.com/dtsim/server/internal/scene"
)

var (
	ErrMapNotFound = errors.New("map not found")
	ErrMapNotOpen  = errors.New("map not open")
	ErrMapOpen     = errors.New("map already open")
)

// Ext is the file extension of map files.
const Ext = ".yaml"

// ActorDef is one actor placed in a map file.
type ActorDef struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	Category   string            `yaml:"category"`
	Type       string            `yaml:"type"`
	Model      string            `yaml:"model"`
	Properties map[string]string `yaml:"properties"`
}

func (d ActorDef) ActorType() actor.Type {
	return actor.Type{Category: d.Category, Name: d.Type}
}

// Map is a parsed map file.
type Map struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Actors      []ActorDef `yaml:"actors"`
}

// Load reads and validates one map file.
func Load(path string) (*Map, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map: %w", err)
	}
	var m Map
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse map %s: %w", path, err)
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), Ext)
	}
	seen := make(map[string]bool, len(m.Actors))
	for i, a := range m.Actors {
		if a.Category == "" || a.Type == "" {
			return nil, fmt.Errorf("map %s: actor %d (%q) has no type", m.Name, i, a.Name)
		}
		if a.ID == "" {
			continue
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("map %s: duplicate actor id %s", m.Name, a.ID)
		}
		seen[a.ID] = true
	}
	return &m, nil
}

// Project is a directory of map files. It opens maps into actor proxies
// built from an actor library and caches parsed files until invalidated.
type Project struct {
	dir     string
	library *actor.Library
	scene   scene.Scene
	log     *zap.Logger

	mu    sync.Mutex
	cache map[string]*Map
	open  map[string]bool
}

func NewProject(dir string, library *actor.Library, sc scene.Scene, log *zap.Logger) *Project {
	return &Project{
		dir:     dir,
		library: library,
		scene:   sc,
		log:     log,
		cache:   make(map[string]*Map, 8),
		open:    make(map[string]bool, 8),
	}
}

func (p *Project) Dir() string { return p.dir }

// MapNames lists the maps available in the project directory.
func (p *Project) MapNames() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != Ext {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), Ext))
	}
	sort.Strings(names)
	return names, nil
}

// GetMap returns the parsed map, loading it on first use.
func (p *Project) GetMap(name string) (*Map, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getLocked(name)
}

func (p *Project) getLocked(name string) (*Map, error) {
	if m, ok := p.cache[name]; ok {
		return m, nil
	}
	path := filepath.Join(p.dir, name+Ext)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMapNotFound, name)
	}
	m, err := Load(path)
	if err != nil {
		return nil, err
	}
	p.cache[name] = m
	return m, nil
}

// IsOpen reports whether name is currently open.
func (p *Project) IsOpen(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open[name]
}

// OpenMap builds the actors of a map. The caller adds them to the game
// manager.
func (p *Project) OpenMap(name string) ([]*actor.Proxy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open[name] {
		return nil, fmt.Errorf("%w: %s", ErrMapOpen, name)
	}
	m, err := p.getLocked(name)
	if err != nil {
		return nil, err
	}

	proxies := make([]*actor.Proxy, 0, len(m.Actors))
	for _, def := range m.Actors {
		px, err := p.library.CreateWithID(def.ActorType(), def.Name, message.UniqueID(def.ID))
		if err != nil {
			return nil, fmt.Errorf("open map %s: %w", name, err)
		}
		for k, v := range def.Properties {
			px.SetProperty(k, v)
		}
		if def.Model != "" && p.scene != nil {
			node, err := p.scene.LoadFile(def.Model)
			if err != nil {
				return nil, fmt.Errorf("open map %s: actor %q: %w", name, def.Name, err)
			}
			px.SetNode(node)
		}
		proxies = append(proxies, px)
	}
	p.open[name] = true
	p.log.Info("map opened", zap.String("map", name), zap.Int("actors", len(proxies)))
	return proxies, nil
}

// CloseMap marks name closed. With deleteLibraries set the parsed file is
// dropped from the cache as well.
func (p *Project) CloseMap(name string, deleteLibraries bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open[name] {
		return fmt.Errorf("%w: %s", ErrMapNotOpen, name)
	}
	delete(p.open, name)
	if deleteLibraries {
		delete(p.cache, name)
	}
	p.log.Info("map closed", zap.String("map", name))
	return nil
}

// Invalidate drops the cached copy of name so the next open rereads it.
func (p *Project) Invalidate(name string) {
	p.mu.Lock()
	_, cached := p.cache[name]
	delete(p.cache, name)
	open := p.open[name]
	p.mu.Unlock()
	if cached {
		p.log.Info("map file changed", zap.String("map", name), zap.Bool("open", open))
	}
}
