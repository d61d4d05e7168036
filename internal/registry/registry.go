// Package registry maps taxpayer ids (CUIT) to client display names. The mapping is
// kept in a YAML file and written back on every change.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"aquere/libros-iva/internal/logging"
	"aquere/libros-iva/internal/models"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the registry file name looked up when none is configured.
const DefaultFile = "clients.yaml"

var (
	// ErrNotFound is returned when a taxpayer id or client is not registered.
	ErrNotFound = errors.New("client not found")
	// ErrDuplicate is returned when a taxpayer id is already registered.
	ErrDuplicate = errors.New("taxpayer id already registered")
	// ErrInvalidTaxpayerID is returned for ids that are not 11 digits.
	ErrInvalidTaxpayerID = errors.New("taxpayer id must have 11 digits")
)

var cuitPattern = regexp.MustCompile(`^\d{11}$`)

// Client is one registry entry.
type Client struct {
	TaxpayerID string `json:"cuit" yaml:"cuit"`
	Name       string `json:"name" yaml:"name"`
}

// Registry is safe for concurrent use.
type Registry struct {
	path   string
	logger logging.Logger

	mu      sync.RWMutex
	clients map[string]string
}

// NormalizeTaxpayerID strips separators ("30-71682008-0" → "30716820080") and
// validates the result.
func NormalizeTaxpayerID(id string) (string, error) {
	clean := strings.NewReplacer("-", "", " ", "", ".", "").Replace(strings.TrimSpace(id))
	if !cuitPattern.MatchString(clean) {
		return "", fmt.Errorf("%w: '%s'", ErrInvalidTaxpayerID, id)
	}
	return clean, nil
}

// FindConfigFile looks for filename in the working directory, ./config and
// $HOME/.libros-iva. Absolute paths are checked as given.
func FindConfigFile(filename string) (string, error) {
	if filepath.IsAbs(filename) {
		if _, err := os.Stat(filename); err == nil {
			return filename, nil
		}
		return "", os.ErrNotExist
	}
	locations := []string{filename, filepath.Join("config", filename)}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".libros-iva", filename))
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location, nil
		}
	}
	return "", os.ErrNotExist
}

// Open loads the registry from filename. A missing file yields an empty registry
// that is created on the first change.
func Open(filename string, logger logging.Logger) (*Registry, error) {
	if filename == "" {
		filename = DefaultFile
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	path, err := FindConfigFile(filename)
	if err != nil {
		logger.Warn("Client registry not found, starting empty", logging.F(logging.FieldFile, filename))
		return &Registry{path: filename, logger: logger, clients: make(map[string]string)}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading client registry: %w", err)
	}
	clients := make(map[string]string)
	if err := yaml.Unmarshal(data, &clients); err != nil {
		return nil, fmt.Errorf("error parsing client registry %s: %w", path, err)
	}
	for id := range clients {
		if _, err := NormalizeTaxpayerID(id); err != nil {
			return nil, fmt.Errorf("client registry %s: %w", path, err)
		}
	}
	logger.Debug("Loaded client registry", logging.F(logging.FieldFile, path), logging.F(logging.FieldCount, len(clients)))
	return &Registry{path: path, logger: logger, clients: clients}, nil
}

// NewInMemory returns a registry that is never persisted.
func NewInMemory(clients map[string]string) *Registry {
	r := &Registry{logger: logging.NewDiscardLogger(), clients: make(map[string]string, len(clients))}
	for id, name := range clients {
		r.clients[id] = name
	}
	return r
}

// Path is the file backing the registry; empty for in-memory registries.
func (r *Registry) Path() string {
	return r.path
}

// ClientByTaxpayerID returns the client name registered for id.
func (r *Registry) ClientByTaxpayerID(id string) (string, bool) {
	clean, err := NormalizeTaxpayerID(id)
	if err != nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.clients[clean]
	return name, ok
}

// TaxpayerIDByClient returns the taxpayer id registered for name.
func (r *Registry) TaxpayerIDByClient(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, n := range r.clients {
		if n == name {
			return id, true
		}
	}
	return "", false
}

// Exists reports whether id is registered.
func (r *Registry) Exists(id string) bool {
	_, ok := r.ClientByTaxpayerID(id)
	return ok
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// All lists clients sorted by name, case-insensitively.
func (r *Registry) All() []Client {
	r.mu.RLock()
	out := make([]Client, 0, len(r.clients))
	for id, name := range r.clients {
		out = append(out, Client{TaxpayerID: id, Name: name})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].TaxpayerID < out[j].TaxpayerID
	})
	return out
}

// Add registers a new client.
func (r *Registry) Add(id, name string) (Client, error) {
	clean, err := NormalizeTaxpayerID(id)
	if err != nil {
		return Client{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Client{}, errors.New("client name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.clients[clean]; ok {
		return Client{}, fmt.Errorf("%w: %s belongs to '%s'", ErrDuplicate, clean, existing)
	}
	r.clients[clean] = name
	if err := r.saveLocked(); err != nil {
		delete(r.clients, clean)
		return Client{}, err
	}
	r.logger.Info("Client registered", logging.F(logging.FieldTaxpayerID, clean), logging.F(logging.FieldClient, name))
	return Client{TaxpayerID: clean, Name: name}, nil
}

// Update renames the client registered under oldID and optionally moves it to newID.
// Empty newName or newID keep the current value.
func (r *Registry) Update(oldID, newName, newID string) (Client, error) {
	old, err := NormalizeTaxpayerID(oldID)
	if err != nil {
		return Client{}, err
	}
	target := old
	if strings.TrimSpace(newID) != "" {
		if target, err = NormalizeTaxpayerID(newID); err != nil {
			return Client{}, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.clients[old]
	if !ok {
		return Client{}, fmt.Errorf("%w: %s", ErrNotFound, old)
	}
	if target != old {
		if existing, taken := r.clients[target]; taken {
			return Client{}, fmt.Errorf("%w: %s belongs to '%s'", ErrDuplicate, target, existing)
		}
	}
	name := strings.TrimSpace(newName)
	if name == "" {
		name = current
	}

	delete(r.clients, old)
	r.clients[target] = name
	if err := r.saveLocked(); err != nil {
		delete(r.clients, target)
		r.clients[old] = current
		return Client{}, err
	}
	r.logger.Info("Client updated",
		logging.F(logging.FieldTaxpayerID, target), logging.F(logging.FieldClient, name))
	return Client{TaxpayerID: target, Name: name}, nil
}

// saveLocked writes the registry through a temp file and rename.
func (r *Registry) saveLocked() error {
	if r.path == "" {
		return nil
	}
	data, err := yaml.Marshal(r.clients)
	if err != nil {
		return fmt.Errorf("error marshaling client registry: %w", err)
	}
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, models.PermissionDirectory); err != nil {
			return fmt.Errorf("error creating directory: %w", err)
		}
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, models.PermissionConfigFile); err != nil {
		return fmt.Errorf("error writing client registry: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("error writing client registry: %w", err)
	}
	return nil
}
