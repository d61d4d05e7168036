package remotestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"aquere/libros-iva/internal/ledgererror"
	"aquere/libros-iva/internal/logging"
	"aquere/libros-iva/internal/models"
	"aquere/libros-iva/internal/session"
	"aquere/libros-iva/internal/workbook"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const fileFields = "id, name, mimeType, parents"

// DriveOptions configures a DriveStore.
type DriveOptions struct {
	// RootFolder must already exist in the account.
	RootFolder  string
	Placeholder string
	// Endpoint overrides the API base URL.
	Endpoint string
}

// DriveStore keeps workbooks in Google Drive under
// <RootFolder>/<client>/{Ventas,Compras}.
type DriveStore struct {
	provider session.Provider
	opts     DriveOptions
	logger   logging.Logger
}

// NewDriveStore creates a store that authenticates through provider on every call.
func NewDriveStore(provider session.Provider, opts DriveOptions, logger logging.Logger) *DriveStore {
	if opts.RootFolder == "" {
		opts.RootFolder = models.DefaultWorkbookRootFolder
	}
	if opts.Placeholder == "" {
		opts.Placeholder = models.DefaultPlaceholderSheet
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &DriveStore{provider: provider, opts: opts, logger: logger}
}

func (d *DriveStore) service(ctx context.Context) (*drive.Service, error) {
	client, err := d.provider.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if d.opts.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(d.opts.Endpoint))
	}
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, &ledgererror.RemoteStoreError{Op: "connect", Err: err}
	}
	return srv, nil
}

// call runs fn against a fresh service. When the store rejects the credentials the
// provider is refreshed once and fn runs a second time. A rejected request applied
// nothing, so fn may write.
func (d *DriveStore) call(ctx context.Context, fn func(*drive.Service) error) error {
	srv, err := d.service(ctx)
	if err != nil {
		return err
	}
	err = fn(srv)
	var authErr *ledgererror.AuthenticationError
	if !errors.As(err, &authErr) {
		return err
	}
	d.logger.WithError(err).Warn("Credentials rejected, refreshing token")
	if rerr := d.provider.Refresh(ctx); rerr != nil {
		d.logger.WithError(rerr).Warn("Token refresh failed")
		return err
	}
	srv, err = d.service(ctx)
	if err != nil {
		return err
	}
	return fn(srv)
}

// quote escapes a value for a Drive query string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, `'`, `\'`) + "'"
}

func (d *DriveStore) findFolder(ctx context.Context, srv *drive.Service, name, parent string) (string, bool, error) {
	q := fmt.Sprintf("name = %s and mimeType = '%s' and trashed = false", quote(name), models.FolderMimeType)
	if parent != "" {
		q += fmt.Sprintf(" and %s in parents", quote(parent))
	}
	list, err := srv.Files.List().Q(q).Fields("files(id, name)").Spaces("drive").
		SupportsAllDrives(true).IncludeItemsFromAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", false, classify("list", name, err)
	}
	if len(list.Files) == 0 {
		return "", false, nil
	}
	return list.Files[0].Id, true, nil
}

func (d *DriveStore) createFolder(ctx context.Context, srv *drive.Service, name, parent string) (string, error) {
	f := &drive.File{Name: name, MimeType: models.FolderMimeType, Parents: []string{parent}}
	created, err := srv.Files.Create(f).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return "", classify("create folder", name, err)
	}
	d.logger.Info("Created folder", logging.F(logging.FieldFolder, name), logging.F(logging.FieldFileID, created.Id))
	return created.Id, nil
}

func missingFolder(name string) error {
	return &ledgererror.RemoteStoreError{Op: "locate folder", Target: name, Err: fmt.Errorf("folder not found")}
}

func (d *DriveStore) root(ctx context.Context, srv *drive.Service) (string, error) {
	id, ok, err := d.findFolder(ctx, srv, d.opts.RootFolder, "")
	if err != nil {
		return "", err
	}
	if !ok {
		return "", missingFolder(d.opts.RootFolder)
	}
	return id, nil
}

// typeFolder resolves <root>/<client>/<type>.
func (d *DriveStore) typeFolder(ctx context.Context, srv *drive.Service, key Key) (string, error) {
	rootID, err := d.root(ctx, srv)
	if err != nil {
		return "", err
	}
	clientID, ok, err := d.findFolder(ctx, srv, key.Client, rootID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", missingFolder(key.Client)
	}
	name := FolderName(key.Type)
	typeID, ok, err := d.findFolder(ctx, srv, name, clientID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", missingFolder(key.Client + "/" + name)
	}
	return typeID, nil
}

func toHandle(f *drive.File, folder string) Handle {
	h := Handle{ID: f.Id, Name: f.Name, MimeType: f.MimeType, FolderID: folder}
	if h.FolderID == "" && len(f.Parents) > 0 {
		h.FolderID = f.Parents[0]
	}
	return h
}

// Locate matches the workbook by name. A file converted to a live spreadsheet loses
// its extension, so the bare name matches too.
func (d *DriveStore) Locate(ctx context.Context, key Key) (Handle, bool, error) {
	if err := key.Validate(); err != nil {
		return Handle{}, false, err
	}
	var (
		h     Handle
		found bool
	)
	err := d.call(ctx, func(srv *drive.Service) error {
		var err error
		h, found, err = d.locate(ctx, srv, key)
		return err
	})
	return h, found, err
}

func (d *DriveStore) locate(ctx context.Context, srv *drive.Service, key Key) (Handle, bool, error) {
	folder, err := d.typeFolder(ctx, srv, key)
	if err != nil {
		return Handle{}, false, err
	}

	name := key.FileName()
	bare := strings.TrimSuffix(name, models.WorkbookExtension)
	q := fmt.Sprintf("(name = %s or name = %s) and %s in parents and trashed = false", quote(name), quote(bare), quote(folder))
	list, err := srv.Files.List().Q(q).Fields("files(" + fileFields + ")").Spaces("drive").
		SupportsAllDrives(true).IncludeItemsFromAllDrives(true).Context(ctx).Do()
	if err != nil {
		return Handle{}, false, classify("locate", name, err)
	}
	if len(list.Files) == 0 {
		return Handle{}, false, nil
	}
	best := list.Files[0]
	for _, f := range list.Files {
		if f.Name == name {
			best = f
			break
		}
	}
	if len(list.Files) > 1 {
		d.logger.Warn("Several workbooks match, using one",
			logging.F(logging.FieldFile, name), logging.F(logging.FieldFileID, best.Id), logging.F(logging.FieldCount, len(list.Files)))
	}
	return toHandle(best, folder), true, nil
}

func (d *DriveStore) Create(ctx context.Context, key Key) (Handle, error) {
	if err := key.Validate(); err != nil {
		return Handle{}, err
	}
	shell, err := workbook.NewShell(d.opts.Placeholder)
	if err != nil {
		return Handle{}, err
	}
	data, err := shell.Bytes()
	if err != nil {
		return Handle{}, err
	}
	var h Handle
	err = d.call(ctx, func(srv *drive.Service) error {
		folder, err := d.typeFolder(ctx, srv, key)
		if err != nil {
			return err
		}
		h, err = d.upload(ctx, srv, key.FileName(), folder, data)
		return err
	})
	return h, err
}

func (d *DriveStore) upload(ctx context.Context, srv *drive.Service, name, folder string, data []byte) (Handle, error) {
	f := &drive.File{Name: name, Parents: []string{folder}, MimeType: models.WorkbookMimeType}
	created, err := srv.Files.Create(f).
		Media(bytes.NewReader(data), googleapi.ContentType(models.WorkbookMimeType)).
		Fields(fileFields).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return Handle{}, classify("create", name, err)
	}
	d.logger.Info("Uploaded workbook", logging.F(logging.FieldFile, name), logging.F(logging.FieldFileID, created.Id))
	return toHandle(created, folder), nil
}

func (d *DriveStore) Fetch(ctx context.Context, h Handle) ([]byte, error) {
	var data []byte
	err := d.call(ctx, func(srv *drive.Service) error {
		var err error
		data, err = d.download(ctx, srv, h)
		return err
	})
	return data, err
}

func (d *DriveStore) download(ctx context.Context, srv *drive.Service, h Handle) ([]byte, error) {
	var body io.ReadCloser
	if h.MimeType == models.LiveSpreadsheetMimeType {
		d.logger.Debug("Exporting live spreadsheet", logging.F(logging.FieldFileID, h.ID))
		resp, err := srv.Files.Export(h.ID, models.WorkbookMimeType).Context(ctx).Download()
		if err != nil {
			return nil, classify("fetch", h.ID, err)
		}
		body = resp.Body
	} else {
		resp, err := srv.Files.Get(h.ID).SupportsAllDrives(true).Context(ctx).Download()
		if err != nil {
			return nil, classify("fetch", h.ID, err)
		}
		body = resp.Body
	}
	defer func() {
		if cerr := body.Close(); cerr != nil {
			d.logger.WithError(cerr).Warn("Failed to close download body")
		}
	}()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, classify("fetch", h.ID, err)
	}
	return data, nil
}

// Replace updates the file content in place. A live spreadsheet cannot take xlsx
// content, so a new xlsx is uploaded next to it and only then is the live document
// moved to the trash. The new handle is returned.
func (d *DriveStore) Replace(ctx context.Context, h Handle, data []byte) (Handle, error) {
	if h.MimeType != models.LiveSpreadsheetMimeType {
		var out Handle
		err := d.call(ctx, func(srv *drive.Service) error {
			updated, err := srv.Files.Update(h.ID, &drive.File{}).
				Media(bytes.NewReader(data), googleapi.ContentType(models.WorkbookMimeType)).
				Fields(fileFields).SupportsAllDrives(true).Context(ctx).Do()
			if err != nil {
				return classify("replace", h.ID, err)
			}
			out = toHandle(updated, h.FolderID)
			return nil
		})
		return out, err
	}

	if h.FolderID == "" {
		return Handle{}, &ledgererror.RemoteStoreError{Op: "replace", Target: h.ID, Err: fmt.Errorf("unknown parent folder")}
	}
	name := h.Name
	if !strings.HasSuffix(strings.ToLower(name), models.WorkbookExtension) {
		name += models.WorkbookExtension
	}
	d.logger.Info("Recreating workbook converted to a live spreadsheet",
		logging.F(logging.FieldFile, name), logging.F(logging.FieldFileID, h.ID))
	var out Handle
	err := d.call(ctx, func(srv *drive.Service) error {
		var err error
		out, err = d.upload(ctx, srv, name, h.FolderID, data)
		return err
	})
	if err != nil {
		return Handle{}, err
	}

	// Locate prefers the exact xlsx name over a leftover live document.
	err = d.call(ctx, func(srv *drive.Service) error {
		_, err := srv.Files.Update(h.ID, &drive.File{Trashed: true}).Fields("id").SupportsAllDrives(true).Context(ctx).Do()
		return classify("trash", h.ID, err)
	})
	if err != nil {
		d.logger.WithError(err).Warn("Could not trash the replaced live spreadsheet",
			logging.F(logging.FieldFileID, h.ID), logging.F(logging.FieldFile, name))
	}
	return out, nil
}

// EnsureClient creates <root>/<client> with both ledger-type folders, reusing what
// already exists.
func (d *DriveStore) EnsureClient(ctx context.Context, client string) error {
	if strings.TrimSpace(client) == "" {
		return fmt.Errorf("client name is required")
	}
	return d.call(ctx, func(srv *drive.Service) error {
		return d.ensureClient(ctx, srv, client)
	})
}

func (d *DriveStore) ensureClient(ctx context.Context, srv *drive.Service, client string) error {
	rootID, err := d.root(ctx, srv)
	if err != nil {
		return err
	}
	clientID, err := d.ensureFolder(ctx, srv, client, rootID)
	if err != nil {
		return err
	}
	for _, t := range []models.LedgerType{models.LedgerSales, models.LedgerPurchases} {
		if _, err := d.ensureFolder(ctx, srv, FolderName(t), clientID); err != nil {
			return err
		}
	}
	return nil
}

func (d *DriveStore) ensureFolder(ctx context.Context, srv *drive.Service, name, parent string) (string, error) {
	id, ok, err := d.findFolder(ctx, srv, name, parent)
	if err != nil || ok {
		return id, err
	}
	return d.createFolder(ctx, srv, name, parent)
}

func (d *DriveStore) RenameClient(ctx context.Context, from, to string) error {
	if from == to {
		return nil
	}
	return d.call(ctx, func(srv *drive.Service) error {
		return d.renameClient(ctx, srv, from, to)
	})
}

func (d *DriveStore) renameClient(ctx context.Context, srv *drive.Service, from, to string) error {
	rootID, err := d.root(ctx, srv)
	if err != nil {
		return err
	}
	clientID, ok, err := d.findFolder(ctx, srv, from, rootID)
	if err != nil {
		return err
	}
	if !ok {
		return missingFolder(from)
	}
	if _, exists, err := d.findFolder(ctx, srv, to, rootID); err != nil {
		return err
	} else if exists {
		return &ledgererror.RemoteStoreError{Op: "rename", Target: to, Err: fmt.Errorf("client folder already exists")}
	}

	if _, err := srv.Files.Update(clientID, &drive.File{Name: to}).Fields("id").SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		return classify("rename", from, err)
	}
	for _, t := range []models.LedgerType{models.LedgerSales, models.LedgerPurchases} {
		folder, ok, err := d.findFolder(ctx, srv, FolderName(t), clientID)
		if err != nil {
			return err
		}
		if ok {
			if err := d.renameWorkbooks(ctx, srv, folder, from, to); err != nil {
				return err
			}
		}
	}
	d.logger.Info("Renamed client folder", logging.F(logging.FieldClient, to), logging.F(logging.FieldFolder, from))
	return nil
}

func (d *DriveStore) renameWorkbooks(ctx context.Context, srv *drive.Service, folder, from, to string) error {
	q := fmt.Sprintf("%s in parents and trashed = false and mimeType != '%s'", quote(folder), models.FolderMimeType)
	var files []*drive.File
	err := srv.Files.List().Q(q).Fields("nextPageToken, files(id, name)").Spaces("drive").
		SupportsAllDrives(true).IncludeItemsFromAllDrives(true).
		Pages(ctx, func(page *drive.FileList) error {
			files = append(files, page.Files...)
			return nil
		})
	if err != nil {
		return classify("list", folder, err)
	}
	for _, f := range files {
		renamed, ok := RenameWorkbookFile(f.Name, from, to)
		if !ok {
			continue
		}
		if _, err := srv.Files.Update(f.Id, &drive.File{Name: renamed}).Fields("id").SupportsAllDrives(true).Context(ctx).Do(); err != nil {
			return classify("rename", f.Name, err)
		}
	}
	return nil
}

// RenameWorkbookFile rewrites a yearly workbook name ending in the client name.
// ok is false for names that do not follow the workbook naming scheme.
func RenameWorkbookFile(name, from, to string) (string, bool) {
	ext := ""
	base := name
	if strings.HasSuffix(strings.ToLower(base), models.WorkbookExtension) {
		ext = base[len(base)-len(models.WorkbookExtension):]
		base = base[:len(base)-len(models.WorkbookExtension)]
	}
	suffix := " " + from
	if !strings.HasPrefix(base, "Libro Iva ") || !strings.HasSuffix(base, suffix) {
		return "", false
	}
	return strings.TrimSuffix(base, suffix) + " " + to + ext, true
}
