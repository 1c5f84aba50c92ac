package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/internal/storage"
	"github.com/deskhub/deskhub/internal/store"
	"github.com/deskhub/deskhub/pkg/logger"
	"github.com/deskhub/deskhub/pkg/metrics"
	"github.com/gabriel-vasile/mimetype"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultURLTTL = 15 * time.Minute
	// sniffLen is how much of an upload mimetype looks at.
	sniffLen       = 3072
	maxTextSize    = 1 << 20
	deleteParallel = 8
	textType       = "text/plain; charset=utf-8"
)

type Service struct {
	folders store.Collection[Folder]
	files   store.Collection[FileItem]
	objects storage.ObjectStore
	urlTTL  time.Duration
}

func NewService(folders store.Collection[Folder], files store.Collection[FileItem], objects storage.ObjectStore, urlTTL time.Duration) *Service {
	if urlTTL <= 0 {
		urlTTL = DefaultURLTTL
	}
	return &Service{folders: folders, files: files, objects: objects, urlTTL: urlTTL}
}

// requireFolder checks that id names a folder of the tenant. "" is the root
// and always exists.
func (s *Service) requireFolder(ctx context.Context, tenant, id string) error {
	if id == "" {
		return nil
	}
	if _, err := s.folders.Get(ctx, tenant, id); err != nil {
		return fmt.Errorf("folder %s: %w", id, err)
	}
	return nil
}

// ensureFree fails with ErrNameTaken when a folder or file named key already
// sits in parent. except skips the record being renamed or moved.
func (s *Service) ensureFree(ctx context.Context, tenant, parent, key, except string) error {
	folders, err := s.folders.Find(ctx, store.ForTenant(tenant).Where("parentId", parent).Where("nameKey", key))
	if err != nil {
		return err
	}
	for _, f := range folders {
		if f.ID != except {
			return ErrNameTaken
		}
	}
	files, err := s.files.Find(ctx, store.ForTenant(tenant).Where("folderId", parent).Where("nameKey", key))
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.ID != except {
			return ErrNameTaken
		}
	}
	return nil
}

func (s *Service) CreateFolder(ctx context.Context, tenant, owner, parentID, name string) (*Folder, error) {
	name, key, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if err := s.requireFolder(ctx, tenant, parentID); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, tenant, parentID, key, ""); err != nil {
		return nil, err
	}
	f := &Folder{Name: name, NameKey: key, ParentID: parentID, OwnerID: owner}
	f.TenantID = tenant
	if err := s.folders.Insert(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) GetFolder(ctx context.Context, tenant, id string) (*Folder, error) {
	return s.folders.Get(ctx, tenant, id)
}

func (s *Service) RenameFolder(ctx context.Context, tenant, id, name string) (*Folder, error) {
	f, err := s.folders.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	name, key, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, tenant, f.ParentID, key, id); err != nil {
		return nil, err
	}
	return s.folders.Update(ctx, tenant, id, bson.M{"name": name, "nameKey": key})
}

// MoveFolder reparents a folder. Moving it below itself is ErrCycle.
func (s *Service) MoveFolder(ctx context.Context, tenant, id, parentID string) (*Folder, error) {
	f, err := s.folders.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if parentID == f.ParentID {
		return f, nil
	}
	if err := s.requireFolder(ctx, tenant, parentID); err != nil {
		return nil, err
	}
	path, err := s.Path(ctx, tenant, parentID)
	if err != nil {
		return nil, err
	}
	for _, anc := range path {
		if anc.ID == id {
			return nil, ErrCycle
		}
	}
	if err := s.ensureFree(ctx, tenant, parentID, f.NameKey, id); err != nil {
		return nil, err
	}
	return s.folders.Update(ctx, tenant, id, bson.M{"parentId": parentID})
}

// DeleteFolder removes the folder and its whole subtree, including the stored
// objects of every file in it. Objects are removed before any record.
func (s *Service) DeleteFolder(ctx context.Context, tenant, id string) error {
	if _, err := s.folders.Get(ctx, tenant, id); err != nil {
		return err
	}
	all, err := s.folders.Find(ctx, store.ForTenant(tenant))
	if err != nil {
		return err
	}
	children := map[string][]string{}
	for _, f := range all {
		children[f.ParentID] = append(children[f.ParentID], f.ID)
	}
	var subtree []any
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		subtree = append(subtree, cur)
		queue = append(queue, children[cur]...)
	}

	items, err := s.files.Find(ctx, store.ForTenant(tenant).WhereIn("folderId", subtree...))
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deleteParallel)
	for _, it := range items {
		key := it.StorageKey
		g.Go(func() error {
			if err := s.objects.DeleteFile(gctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
				return fmt.Errorf("delete object %s: %w", key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if _, err := s.files.DeleteWhere(ctx, store.ForTenant(tenant).WhereIn("folderId", subtree...)); err != nil {
		return err
	}
	n, err := s.folders.DeleteWhere(ctx, store.ForTenant(tenant).WhereIn("_id", subtree...))
	if err != nil {
		return err
	}
	logger.Debugf("files: deleted %d folders and %d files under %s", n, len(items), id)
	return nil
}

// Children lists the folders and files directly inside folderID, folders
// first, each sorted by name.
func (s *Service) Children(ctx context.Context, tenant, folderID string) (*Listing, error) {
	if err := s.requireFolder(ctx, tenant, folderID); err != nil {
		return nil, err
	}
	folders, err := s.folders.Find(ctx, store.ForTenant(tenant).Where("parentId", folderID).SortBy("nameKey"))
	if err != nil {
		return nil, err
	}
	items, err := s.files.Find(ctx, store.ForTenant(tenant).Where("folderId", folderID).SortBy("nameKey"))
	if err != nil {
		return nil, err
	}
	return &Listing{Folders: folders, Files: items}, nil
}

// Tree returns every folder of the tenant nested under its parent.
func (s *Service) Tree(ctx context.Context, tenant string) ([]*TreeNode, error) {
	all, err := s.folders.Find(ctx, store.ForTenant(tenant).SortBy("nameKey"))
	if err != nil {
		return nil, err
	}
	nodes := make(map[string]*TreeNode, len(all))
	for _, f := range all {
		nodes[f.ID] = &TreeNode{Folder: f, Children: []*TreeNode{}}
	}
	roots := []*TreeNode{}
	for _, f := range all {
		n := nodes[f.ID]
		if parent, ok := nodes[f.ParentID]; ok && f.ParentID != "" {
			parent.Children = append(parent.Children, n)
			continue
		}
		roots = append(roots, n)
	}
	sortNodes(roots)
	return roots, nil
}

func sortNodes(nodes []*TreeNode) {
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].NameKey < nodes[j].NameKey })
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}

// Path returns the breadcrumb from the root down to folderID, inclusive.
func (s *Service) Path(ctx context.Context, tenant, folderID string) ([]*Folder, error) {
	var rev []*Folder
	seen := map[string]bool{}
	for id := folderID; id != ""; {
		if seen[id] {
			return nil, fmt.Errorf("folder %s: %w", folderID, ErrCycle)
		}
		seen[id] = true
		f, err := s.folders.Get(ctx, tenant, id)
		if err != nil {
			return nil, fmt.Errorf("folder %s: %w", id, err)
		}
		rev = append(rev, f)
		id = f.ParentID
	}
	out := make([]*Folder, len(rev))
	for i, f := range rev {
		out[len(rev)-1-i] = f
	}
	return out, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Upload stores r as a new file in folderID. size may be -1 when unknown.
func (s *Service) Upload(ctx context.Context, tenant, owner, folderID, name string, r io.Reader, size int64) (*FileItem, error) {
	name, key, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if err := s.requireFolder(ctx, tenant, folderID); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, tenant, folderID, key, ""); err != nil {
		return nil, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	contentType := mimetype.Detect(head).String()
	body := &countingReader{r: io.MultiReader(bytes.NewReader(head), r)}

	item := &FileItem{
		Name: name, NameKey: key, FolderID: folderID, OwnerID: owner,
		StorageKey: tenant + "/" + store.NewID(), ContentType: contentType,
	}
	if err := s.objects.UploadFile(ctx, item.StorageKey, body, size, contentType); err != nil {
		return nil, fmt.Errorf("store object: %w", err)
	}
	item.Size = body.n
	metrics.StorageBytesUploaded.Add(float64(body.n))

	item.TenantID = tenant
	if err := s.files.Insert(ctx, item); err != nil {
		if derr := s.objects.DeleteFile(ctx, item.StorageKey); derr != nil {
			logger.Warnf("files: orphaned object %s: %v", item.StorageKey, derr)
		}
		return nil, err
	}
	return item, nil
}

// SaveText creates a text file or replaces the content of an existing one.
func (s *Service) SaveText(ctx context.Context, tenant, owner string, t TextFile) (*FileItem, error) {
	if len(t.Content) > maxTextSize {
		return nil, httpx.Invalidf("text is larger than %d bytes", maxTextSize)
	}
	if t.ID == "" {
		return s.Upload(ctx, tenant, owner, t.FolderID, t.Name, strings.NewReader(t.Content), int64(len(t.Content)))
	}
	item, err := s.files.Get(ctx, tenant, t.ID)
	if err != nil {
		return nil, err
	}
	if !isText(item.ContentType) {
		return nil, ErrNotText
	}
	set := bson.M{"size": int64(len(t.Content)), "contentType": textType}
	if t.Name != "" && t.Name != item.Name {
		name, key, err := cleanName(t.Name)
		if err != nil {
			return nil, err
		}
		if err := s.ensureFree(ctx, tenant, item.FolderID, key, item.ID); err != nil {
			return nil, err
		}
		set["name"], set["nameKey"] = name, key
	}
	if err := s.objects.UploadFile(ctx, item.StorageKey, strings.NewReader(t.Content), int64(len(t.Content)), textType); err != nil {
		return nil, fmt.Errorf("store object: %w", err)
	}
	metrics.StorageBytesUploaded.Add(float64(len(t.Content)))
	return s.files.Update(ctx, tenant, t.ID, set)
}

// ReadText returns the content of a text file.
func (s *Service) ReadText(ctx context.Context, tenant, id string) (string, *FileItem, error) {
	item, err := s.files.Get(ctx, tenant, id)
	if err != nil {
		return "", nil, err
	}
	if !isText(item.ContentType) {
		return "", nil, ErrNotText
	}
	if item.Size > maxTextSize {
		return "", nil, httpx.Invalidf("file is larger than %d bytes", maxTextSize)
	}
	rc, err := s.objects.DownloadFile(ctx, item.StorageKey)
	if err != nil {
		return "", nil, fmt.Errorf("load object: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxTextSize+1))
	if err != nil {
		return "", nil, err
	}
	return string(data), item, nil
}

func (s *Service) GetFile(ctx context.Context, tenant, id string) (*FileItem, error) {
	return s.files.Get(ctx, tenant, id)
}

// DownloadURL returns a presigned GET URL for the file's object.
func (s *Service) DownloadURL(ctx context.Context, tenant, id string) (string, time.Time, error) {
	item, err := s.files.Get(ctx, tenant, id)
	if err != nil {
		return "", time.Time{}, err
	}
	u, err := s.objects.PresignedDownloadURL(ctx, item.StorageKey, item.Name, s.urlTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign %s: %w", item.ID, err)
	}
	return u, time.Now().Add(s.urlTTL), nil
}

// Download opens the file's content. The caller closes the reader.
func (s *Service) Download(ctx context.Context, tenant, id string) (io.ReadCloser, *FileItem, error) {
	item, err := s.files.Get(ctx, tenant, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.objects.DownloadFile(ctx, item.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, fmt.Errorf("object for %s: %w", id, store.ErrNotFound)
		}
		return nil, nil, err
	}
	return rc, item, nil
}

func (s *Service) RenameFile(ctx context.Context, tenant, id, name string) (*FileItem, error) {
	item, err := s.files.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	name, key, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, tenant, item.FolderID, key, id); err != nil {
		return nil, err
	}
	return s.files.Update(ctx, tenant, id, bson.M{"name": name, "nameKey": key})
}

func (s *Service) MoveFile(ctx context.Context, tenant, id, folderID string) (*FileItem, error) {
	item, err := s.files.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireFolder(ctx, tenant, folderID); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, tenant, folderID, item.NameKey, id); err != nil {
		return nil, err
	}
	return s.files.Update(ctx, tenant, id, bson.M{"folderId": folderID})
}

// DeleteFile removes the stored object, then the record.
func (s *Service) DeleteFile(ctx context.Context, tenant, id string) error {
	item, err := s.files.Get(ctx, tenant, id)
	if err != nil {
		return err
	}
	if err := s.objects.DeleteFile(ctx, item.StorageKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("delete object: %w", err)
	}
	return s.files.Delete(ctx, tenant, id)
}

func (s *Service) CountFiles(ctx context.Context, tenant string) (int64, error) {
	return s.files.Count(ctx, store.ForTenant(tenant))
}
