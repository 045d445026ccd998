// Package store owns the on-disk layout of an index directory:
//
//	<root>/review_ids.txt
//	<root>/blocks/block_<n>.txt
//	<root>/segments/<first>-<last>/{vocabulary,postings}.txt
//	<root>/index_props.json
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/review-search/pkg/errors"
)

const (
	ReviewIDsFile = "review_ids.txt"
	PropsFile     = "index_props.json"
	BlocksDir     = "blocks"
	SegmentsDir   = "segments"

	blockPrefix = "block_"
	blockSuffix = ".txt"
)

// Directory is an index root.
type Directory struct {
	root      string
	nextBlock int
}

// Create makes a fresh index directory. An existing path is a conflict
// unless overwrite is set, in which case it is removed first.
func Create(root string, overwrite bool) (*Directory, error) {
	if _, err := os.Stat(root); err == nil {
		if !overwrite {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrPathConflict, root)
		}
		if err := os.RemoveAll(root); err != nil {
			return nil, fmt.Errorf("removing existing index: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("checking index path: %w", err)
	}
	for _, dir := range []string{root, filepath.Join(root, BlocksDir), filepath.Join(root, SegmentsDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	d := &Directory{root: root}
	if err := os.WriteFile(d.ReviewIDsPath(), nil, 0o644); err != nil {
		return nil, fmt.Errorf("creating review ids: %w", err)
	}
	return d, nil
}

// Open returns an existing, completed index directory.
func Open(root string) (*Directory, error) {
	if _, err := os.Stat(filepath.Join(root, PropsFile)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrIndexNotFound, root)
		}
		return nil, fmt.Errorf("opening index: %w", err)
	}
	return &Directory{root: root}, nil
}

func (d *Directory) Root() string { return d.root }

func (d *Directory) BlocksPath() string { return filepath.Join(d.root, BlocksDir) }

func (d *Directory) SegmentsPath() string { return filepath.Join(d.root, SegmentsDir) }

func (d *Directory) ReviewIDsPath() string { return filepath.Join(d.root, ReviewIDsFile) }

func (d *Directory) PropsPath() string { return filepath.Join(d.root, PropsFile) }

// NextBlockPath reserves the path of the next block file.
func (d *Directory) NextBlockPath() string {
	path := filepath.Join(d.BlocksPath(), blockPrefix+strconv.Itoa(d.nextBlock)+blockSuffix)
	d.nextBlock++
	return path
}

// BlockPaths lists the block files in flush order.
func (d *Directory) BlockPaths() ([]string, error) {
	entries, err := os.ReadDir(d.BlocksPath())
	if err != nil {
		return nil, fmt.Errorf("listing blocks: %w", err)
	}
	type numbered struct {
		n    int
		path string
	}
	var blocks []numbered
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, blockPrefix) || !strings.HasSuffix(name, blockSuffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, blockPrefix), blockSuffix))
		if err != nil {
			continue
		}
		blocks = append(blocks, numbered{n: n, path: filepath.Join(d.BlocksPath(), name)})
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].n < blocks[j].n })
	paths := make([]string, len(blocks))
	for i, b := range blocks {
		paths[i] = b.path
	}
	return paths, nil
}

func (d *Directory) DeleteBlocks() error {
	if err := os.RemoveAll(d.BlocksPath()); err != nil {
		return fmt.Errorf("deleting blocks: %w", err)
	}
	return nil
}

// Size is the number of bytes of every regular file under the root.
func (d *Directory) Size() (int64, error) {
	var total int64
	err := filepath.WalkDir(d.root, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if e.Type().IsRegular() {
			info, err := e.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("measuring index size: %w", err)
	}
	return total, nil
}
