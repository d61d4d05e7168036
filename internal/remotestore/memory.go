package remotestore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"aquere/libros-iva/internal/ledgererror"
	"aquere/libros-iva/internal/models"
	"aquere/libros-iva/internal/workbook"

	"github.com/google/uuid"
)

// Fault is an injected failure for the next call of one operation. When Applied is
// set the operation takes effect before the error is returned, as a write that
// reached the store but whose response was lost.
type Fault struct {
	Err     error
	Applied bool
}

type memFile struct {
	handle Handle
	key    Key
	data   []byte
}

// MemoryStore keeps workbooks in memory. It backs tests and dry runs.
type MemoryStore struct {
	mu          sync.Mutex
	placeholder string
	files       map[string]*memFile
	clients     map[string]bool
	faults      map[string][]Fault

	creates, replaces, fetches, locates int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(placeholder string) *MemoryStore {
	if placeholder == "" {
		placeholder = models.DefaultPlaceholderSheet
	}
	return &MemoryStore{
		placeholder: placeholder,
		files:       make(map[string]*memFile),
		clients:     make(map[string]bool),
		faults:      make(map[string][]Fault),
	}
}

// FailNext queues a fault for op ("locate", "create", "fetch" or "replace"). A
// Fault with a nil Err lets one call through, so later calls can be targeted.
func (m *MemoryStore) FailNext(op string, f Fault) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = append(m.faults[op], f)
}

func (m *MemoryStore) takeFault(op string) (Fault, bool) {
	queue := m.faults[op]
	if len(queue) == 0 {
		return Fault{}, false
	}
	m.faults[op] = queue[1:]
	return queue[0], queue[0].Err != nil
}

// Writes counts create and replace calls that reached the store.
func (m *MemoryStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates + m.replaces
}

// Fetches counts fetch calls.
func (m *MemoryStore) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

// Locates counts locate calls.
func (m *MemoryStore) Locates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locates
}

// Put stores data under key directly, bypassing counters.
func (m *MemoryStore) Put(key Key, data []byte) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putLocked(key, data, models.WorkbookMimeType)
}

func (m *MemoryStore) putLocked(key Key, data []byte, mime string) Handle {
	h := Handle{ID: uuid.NewString(), Name: key.FileName(), FolderID: folderID(key), MimeType: mime}
	m.files[h.ID] = &memFile{handle: h, key: key, data: append([]byte(nil), data...)}
	m.clients[key.Client] = true
	return h
}

// Data returns the stored bytes for key.
func (m *MemoryStore) Data(key Key) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f := m.findLocked(key); f != nil {
		return append([]byte(nil), f.data...), true
	}
	return nil, false
}

// ConvertToLive marks the workbook for key as a live spreadsheet document, as happens
// when someone opens and converts it in the browser.
func (m *MemoryStore) ConvertToLive(key Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f := m.findLocked(key); f != nil {
		f.handle.MimeType = models.LiveSpreadsheetMimeType
		return true
	}
	return false
}

func (m *MemoryStore) findLocked(key Key) *memFile {
	for _, f := range m.files {
		if f.key == key {
			return f
		}
	}
	return nil
}

func folderID(key Key) string {
	return key.Client + "/" + FolderName(key.Type)
}

func (m *MemoryStore) Locate(ctx context.Context, key Key) (Handle, bool, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, false, classify("locate", key.FileName(), err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locates++
	if f, ok := m.takeFault("locate"); ok {
		return Handle{}, false, f.Err
	}
	if f := m.findLocked(key); f != nil {
		return f.handle, true, nil
	}
	return Handle{}, false, nil
}

func (m *MemoryStore) Create(ctx context.Context, key Key) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, classify("create", key.FileName(), err)
	}
	shell, err := workbook.NewShell(m.placeholder)
	if err != nil {
		return Handle{}, err
	}
	data, err := shell.Bytes()
	if err != nil {
		return Handle{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	fault, faulty := m.takeFault("create")
	if faulty && !fault.Applied {
		return Handle{}, fault.Err
	}
	if existing := m.findLocked(key); existing != nil {
		return Handle{}, &ledgererror.RemoteStoreError{Op: "create", Target: key.FileName(),
			Err: errors.New("a workbook with this name already exists")}
	}
	m.creates++
	h := m.putLocked(key, data, models.WorkbookMimeType)
	if faulty {
		return Handle{}, fault.Err
	}
	return h, nil
}

func (m *MemoryStore) Fetch(ctx context.Context, h Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("fetch", h.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if f, ok := m.takeFault("fetch"); ok {
		return nil, f.Err
	}
	f, ok := m.files[h.ID]
	if !ok {
		return nil, &ledgererror.RemoteStoreError{Op: "fetch", Target: h.ID, Err: fmt.Errorf("file not found")}
	}
	return append([]byte(nil), f.data...), nil
}

func (m *MemoryStore) Replace(ctx context.Context, h Handle, data []byte) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, classify("replace", h.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fault, faulty := m.takeFault("replace")
	if faulty && !fault.Applied {
		return Handle{}, fault.Err
	}
	f, ok := m.files[h.ID]
	if !ok {
		return Handle{}, &ledgererror.RemoteStoreError{Op: "replace", Target: h.ID, Err: fmt.Errorf("file not found")}
	}
	m.replaces++

	next := f.handle
	if f.handle.MimeType == models.LiveSpreadsheetMimeType {
		// live documents cannot take xlsx content: recreate under a new id
		delete(m.files, h.ID)
		next = m.putLocked(f.key, data, models.WorkbookMimeType)
	} else {
		f.data = append([]byte(nil), data...)
	}
	if faulty {
		return Handle{}, fault.Err
	}
	return next, nil
}

func (m *MemoryStore) EnsureClient(ctx context.Context, client string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[client] = true
	return nil
}

func (m *MemoryStore) RenameClient(ctx context.Context, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.clients[from] {
		return &ledgererror.RemoteStoreError{Op: "rename", Target: from, Err: fmt.Errorf("client folder not found")}
	}
	delete(m.clients, from)
	m.clients[to] = true
	for _, f := range m.files {
		if f.key.Client == from {
			f.key.Client = to
			f.handle.FolderID = folderID(f.key)
			f.handle.Name = f.key.FileName()
		}
	}
	return nil
}

// HasClient reports whether a folder exists for client.
func (m *MemoryStore) HasClient(client string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clients[client]
}
