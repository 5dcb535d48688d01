package notes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// FolderTree is the in-memory view of an identity's folders, plus the
// active folder and which tree nodes are expanded.
type FolderTree struct {
	folders   []Folder
	defaultID string
	activeID  string
	pendingID string
	expanded  map[string]bool
}

// TreeNode is a folder positioned in the rendered tree.
type TreeNode struct {
	Folder   Folder
	Depth    int
	Expanded bool
	// HasChildren is true when the node has at least one subfolder.
	HasChildren bool
}

// SortFolders orders siblings by position, then name, then ID.
func SortFolders(folders []Folder) {
	sort.SliceStable(folders, func(i, j int) bool {
		if folders[i].Position != folders[j].Position {
			return folders[i].Position < folders[j].Position
		}
		if folders[i].Name != folders[j].Name {
			return folders[i].Name < folders[j].Name
		}
		return folders[i].ID < folders[j].ID
	})
}

// ResolveActiveFolder picks the folder to show. In order of preference:
// the pending candidate, the current folder, the default folder, any root
// folder, then the first folder. It returns "" only when folders is empty.
func ResolveActiveFolder(candidate, current string, folders []Folder) string {
	has := func(id string) bool {
		if id == "" {
			return false
		}
		for _, f := range folders {
			if f.ID == id {
				return true
			}
		}
		return false
	}

	switch {
	case has(candidate):
		return candidate
	case has(current):
		return current
	}
	for _, f := range folders {
		if f.IsDefault {
			return f.ID
		}
	}
	for _, f := range folders {
		if f.ParentID == "" {
			return f.ID
		}
	}
	if len(folders) > 0 {
		return folders[0].ID
	}
	return ""
}

func (t *FolderTree) replace(folders []Folder) {
	sorted := append([]Folder(nil), folders...)
	SortFolders(sorted)
	t.folders = sorted
	t.defaultID = ""
	for _, f := range sorted {
		if f.IsDefault {
			t.defaultID = f.ID
			break
		}
	}
}

// resolve applies ResolveActiveFolder and consumes the pending candidate
// when it wins.
func (t *FolderTree) resolve() string {
	id := ResolveActiveFolder(t.pendingID, t.activeID, t.folders)
	if id != "" && id == t.pendingID {
		t.pendingID = ""
	}
	return id
}

func (t *FolderTree) find(id string) (Folder, bool) {
	for _, f := range t.folders {
		if f.ID == id {
			return f, true
		}
	}
	return Folder{}, false
}

func (t *FolderTree) children(parentID string) []Folder {
	var out []Folder
	for _, f := range t.folders {
		if f.ParentID == parentID {
			out = append(out, f)
		}
	}
	return out
}

func (t *FolderTree) hasChildren(id string) bool {
	for _, f := range t.folders {
		if f.ParentID == id {
			return true
		}
	}
	return false
}

// expandAncestors opens every folder on the path to id.
func (t *FolderTree) expandAncestors(id string) {
	if t.expanded == nil {
		t.expanded = make(map[string]bool)
	}
	// Bounded by the folder count so a parent cycle cannot loop forever.
	for i := 0; id != "" && i <= len(t.folders); i++ {
		t.expanded[id] = true
		f, ok := t.find(id)
		if !ok {
			return
		}
		id = f.ParentID
	}
}

func (t *FolderTree) toggle(id string) {
	if t.expanded == nil {
		t.expanded = make(map[string]bool)
	}
	t.expanded[id] = !t.expanded[id]
}

// tree flattens the folders depth-first. Children of collapsed nodes are
// omitted. Folders whose parent no longer exists are shown at root level.
func (t *FolderTree) tree() []TreeNode {
	known := make(map[string]bool, len(t.folders))
	for _, f := range t.folders {
		known[f.ID] = true
	}

	var out []TreeNode
	visited := make(map[string]bool)
	var walk func(f Folder, depth int)
	walk = func(f Folder, depth int) {
		if visited[f.ID] {
			return
		}
		visited[f.ID] = true
		node := TreeNode{
			Folder:      f,
			Depth:       depth,
			Expanded:    t.expanded[f.ID],
			HasChildren: t.hasChildren(f.ID),
		}
		out = append(out, node)
		if !node.Expanded {
			return
		}
		for _, c := range t.children(f.ID) {
			walk(c, depth+1)
		}
	}
	for _, f := range t.folders {
		if f.ParentID == "" || !known[f.ParentID] {
			walk(f, 0)
		}
	}
	return out
}

func validateFolderName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", validationf("folder name cannot be empty")
	}
	return name, nil
}

func (s *Session) foldersPath(uid string) string {
	return s.opts.CollectionRoot + "/" + uid + "/folders"
}

// ensureDefaultFolder creates the default folder for an identity whose
// folder collection is empty. A second empty snapshot while the create is
// in flight does not start another one. A failed create is retried.
func (s *Session) ensureDefaultFolder() {
	if s.provisioning || s.identity == nil {
		return
	}
	s.provisioning = true
	uid := s.identity.UID
	fields := Fields{
		fieldName:      s.opts.DefaultFolderName,
		fieldParentID:  nil,
		fieldIsDefault: true,
		fieldPosition:  s.clock.Now().UnixMilli(),
		fieldCreatedAt: ServerTimestamp,
		fieldUpdatedAt: ServerTimestamp,
	}

	s.spawn(func() {
		id, err := s.store.Create(s.ctx, s.foldersPath(uid), fields)
		s.post(func() {
			if s.identity == nil || s.identity.UID != uid {
				return
			}
			s.provisioning = false
			if err != nil {
				s.logger.Error("creating default folder failed", "uid", uid, "error", err)
				s.setStatus("Default folder could not be created.", ToneError)
				s.failLoad(fmt.Errorf("creating default folder: %w", err), func() {
					if s.folderSub != nil && len(s.folders.folders) == 0 {
						s.ensureDefaultFolder()
					}
				})
				return
			}
			s.logger.Info("default folder created", "uid", uid, "folder", id)
		})
	})
}

// migrateLegacyNotes moves notes without a folder into the default folder.
func (s *Session) migrateLegacyNotes(uid, defaultID string) {
	s.spawn(func() {
		path := s.notesPath(uid)
		docs, err := s.store.Get(s.ctx, Query{Collection: path}.Where(fieldFolderID, nil))
		if err != nil {
			s.logger.Error("finding notes without folder failed", "uid", uid, "error", err)
			return
		}
		for _, d := range docs {
			if err := s.store.Update(s.ctx, path, d.ID, Fields{fieldFolderID: defaultID}); err != nil {
				s.logger.Error("moving note to default folder failed", "note", d.ID, "error", err)
				continue
			}
			s.logger.Info("note moved to default folder", "note", d.ID, "folder", defaultID)
		}
	})
}

// CreateFolder adds a folder under parentID (empty for root level) and
// makes it the active folder once it is visible.
func (s *Session) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	name, err := validateFolderName(name)
	if err != nil {
		s.report(err)
		return "", err
	}

	var uid string
	err = s.call(ctx, func() error {
		if s.identity == nil {
			return ErrNoIdentity
		}
		if parentID != "" {
			if _, ok := s.folders.find(parentID); !ok {
				return fmt.Errorf("parent folder %s: %w", parentID, ErrNotFound)
			}
		}
		uid = s.identity.UID
		return nil
	})
	if err != nil {
		return "", err
	}

	id, err := s.store.Create(ctx, s.foldersPath(uid), Fields{
		fieldName:      name,
		fieldParentID:  nullable(parentID),
		fieldIsDefault: false,
		fieldPosition:  s.clock.Now().UnixMilli(),
		fieldCreatedAt: ServerTimestamp,
		fieldUpdatedAt: ServerTimestamp,
	})
	if err != nil {
		s.logger.Error("creating folder failed", "name", name, "error", err)
		s.postStatus("Folder could not be created.", ToneError)
		return "", fmt.Errorf("creating folder: %w", err)
	}
	s.logger.Info("folder created", "folder", id, "parent", parentID)

	err = s.call(ctx, func() error {
		if parentID != "" {
			s.folders.expandAncestors(parentID)
		}
		if _, ok := s.folders.find(id); ok {
			s.switchFolder(id)
		} else {
			s.folders.pendingID = id
		}
		s.setStatus("Folder created.", ToneSuccess)
		return nil
	})
	return id, err
}

// RenameFolder changes a folder's display name.
func (s *Session) RenameFolder(ctx context.Context, id, name string) error {
	name, err := validateFolderName(name)
	if err != nil {
		s.report(err)
		return err
	}

	var uid string
	err = s.call(ctx, func() error {
		if s.identity == nil {
			return ErrNoIdentity
		}
		if _, ok := s.folders.find(id); !ok {
			return fmt.Errorf("folder %s: %w", id, ErrNotFound)
		}
		uid = s.identity.UID
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.store.Update(ctx, s.foldersPath(uid), id, Fields{
		fieldName:      name,
		fieldUpdatedAt: ServerTimestamp,
	}); err != nil {
		s.logger.Error("renaming folder failed", "folder", id, "error", err)
		s.postStatus("Folder could not be renamed.", ToneError)
		return fmt.Errorf("renaming folder: %w", err)
	}
	s.logger.Info("folder renamed", "folder", id)
	s.postStatus("Folder renamed.", ToneSuccess)
	return nil
}

// DeleteFolder removes an empty, non-default folder. Emptiness is checked
// again by the store in the same transaction as the delete.
func (s *Session) DeleteFolder(ctx context.Context, id string) error {
	var uid string
	err := s.call(ctx, func() error {
		if s.identity == nil {
			return ErrNoIdentity
		}
		f, ok := s.folders.find(id)
		if !ok {
			return fmt.Errorf("folder %s: %w", id, ErrNotFound)
		}
		if f.IsDefault || id == s.folders.defaultID {
			return &FolderDeleteError{FolderID: id, Reason: ReasonDefault}
		}
		if s.folders.hasChildren(id) {
			return &FolderDeleteError{FolderID: id, Reason: ReasonChildren}
		}
		uid = s.identity.UID
		return nil
	})
	if err != nil {
		s.report(err)
		return err
	}

	err = s.store.DeleteGuarded(ctx, s.foldersPath(uid), id,
		Query{Collection: s.notesPath(uid), Limit: 1}.Where(fieldFolderID, id),
		Query{Collection: s.foldersPath(uid), Limit: 1}.Where(fieldParentID, id),
	)
	var gerr *GuardError
	if errors.As(err, &gerr) {
		reason := ReasonNotes
		if gerr.Index == 1 {
			reason = ReasonChildren
		}
		derr := &FolderDeleteError{FolderID: id, Reason: reason}
		s.report(derr)
		return derr
	}
	if err != nil {
		s.logger.Error("deleting folder failed", "folder", id, "error", err)
		s.postStatus("Folder could not be deleted.", ToneError)
		return fmt.Errorf("deleting folder: %w", err)
	}
	s.logger.Info("folder deleted", "folder", id)

	return s.call(ctx, func() error {
		delete(s.folders.expanded, id)
		if s.folders.activeID == id {
			s.switchFolder(s.folders.defaultID)
		}
		s.setStatus("Folder deleted.", ToneSuccess)
		return nil
	})
}

// ToggleFolder expands or collapses a folder in the tree.
func (s *Session) ToggleFolder(ctx context.Context, id string) error {
	return s.call(ctx, func() error {
		if _, ok := s.folders.find(id); !ok {
			return fmt.Errorf("folder %s: %w", id, ErrNotFound)
		}
		s.folders.toggle(id)
		s.emitFolders()
		return nil
	})
}

// Tree returns the folder tree as currently rendered.
func (s *Session) Tree(ctx context.Context) ([]TreeNode, error) {
	var out []TreeNode
	err := s.call(ctx, func() error {
		out = s.folders.tree()
		return nil
	})
	return out, err
}
