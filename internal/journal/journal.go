// Package journal records every saved document as a git commit so learners
// can look back at how the catalog and their progress changed.
package journal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/gaetan-warin/LearnREST/internal/logging"
	"github.com/gaetan-warin/LearnREST/internal/store"
)

var ErrNotFound = errors.New("journal entry not found")

type Entry struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Journal wraps a store.Blobs. Saves go to the wrapped store first and are
// then committed to the repository; a failed commit is logged, not returned.
type Journal struct {
	blobs  store.Blobs
	dir    string
	logger logging.Logger
	mu     sync.Mutex
	repo   *git.Repository
}

func Open(dir string, blobs store.Blobs, logger logging.Logger) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(dir, false)
		if err != nil {
			return nil, fmt.Errorf("init journal repo: %w", err)
		}
		head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))
		if err := repo.Storer.SetReference(head); err != nil {
			return nil, fmt.Errorf("set journal head: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open journal repo: %w", err)
	}

	return &Journal{
		blobs:  blobs,
		dir:    dir,
		logger: logger.With("component", "journal"),
		repo:   repo,
	}, nil
}

func (j *Journal) Load(ctx context.Context, name string) ([]byte, error) {
	return j.blobs.Load(ctx, name)
}

func (j *Journal) Save(ctx context.Context, name string, data []byte) error {
	if err := j.blobs.Save(ctx, name, data); err != nil {
		return err
	}
	if _, err := j.commit(name, data); err != nil {
		j.logger.Warn(ctx, "journal commit failed", "document", name, "error", err)
	}
	return nil
}

func (j *Journal) Ping(ctx context.Context) error {
	return j.blobs.Ping(ctx)
}

// History lists the commits that touched the document, newest first.
func (j *Journal) History(name string, limit int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.repo.Head(); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	fileName := fileFor(name)
	iter, err := j.repo.Log(&git.LogOptions{FileName: &fileName})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Entry, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toEntry(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Snapshot returns the document as committed in hash (full or abbreviated).
func (j *Journal) Snapshot(name, hash string) ([]byte, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	resolved, err := resolveHash(j.repo, hash)
	if err != nil {
		return nil, err
	}
	commitObj, err := j.repo.CommitObject(resolved)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, fmt.Errorf("commit %s: %w", hash, ErrNotFound)
		}
		return nil, fmt.Errorf("read commit %s: %w", hash, err)
	}
	file, err := commitObj.File(fileFor(name))
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, fmt.Errorf("%s at %s: %w", name, hash, ErrNotFound)
		}
		return nil, fmt.Errorf("load %s from commit: %w", name, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("read %s from commit: %w", name, err)
	}
	return []byte(contents), nil
}

func (j *Journal) commit(name string, data []byte) (plumbing.Hash, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	worktree, err := j.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}

	fileName := fileFor(name)
	if err := os.WriteFile(filepath.Join(j.dir, fileName), data, 0o644); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write %s: %w", fileName, err)
	}
	if _, err := worktree.Add(fileName); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("git add %s: %w", fileName, err)
	}

	hash, err := worktree.Commit("update "+name, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "REST Quest",
			Email: "journal@rest-quest.local",
			When:  time.Now(),
		},
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		return plumbing.ZeroHash, nil
	}
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit %s: %w", fileName, err)
	}
	return hash, nil
}

func fileFor(name string) string {
	return name + ".json"
}

func toEntry(commitObj *object.Commit) Entry {
	return Entry{
		Hash:      commitObj.Hash.String(),
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve %s: %w", hash, ErrNotFound)
	}
	return *resolved, nil
}
