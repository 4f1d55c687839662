package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"housemarket/internal/market"
)

const (
	UsersFile      = "users.json"
	PortfoliosFile = "portfolios.json"
	HousesFile     = "houses.json"
)

// File keeps each registry in its own JSON document under Dir.
type File struct {
	Dir string
}

func NewFile(dir string) *File {
	return &File{Dir: dir}
}

func (f *File) Load(ctx context.Context) (market.Snapshot, error) {
	var snap market.Snapshot
	if err := ctx.Err(); err != nil {
		return snap, err
	}

	raw, err := f.read(HousesFile)
	if err != nil {
		return snap, err
	}
	if snap.Houses, err = decodeHouses(bytes.NewReader(raw)); err != nil {
		return snap, fmt.Errorf("%w: %s: %v", market.ErrInvalidSnapshot, HousesFile, err)
	}

	if raw, err = f.read(UsersFile); err != nil {
		return snap, err
	}
	if snap.Users, err = decodeUsers(bytes.NewReader(raw)); err != nil {
		return snap, fmt.Errorf("%w: %s: %v", market.ErrInvalidSnapshot, UsersFile, err)
	}

	if raw, err = f.read(PortfoliosFile); err != nil {
		return snap, err
	}
	if snap.Portfolios, err = decodePortfolios(bytes.NewReader(raw)); err != nil {
		return snap, fmt.Errorf("%w: %s: %v", market.ErrInvalidSnapshot, PortfoliosFile, err)
	}
	return snap, nil
}

func (f *File) Save(ctx context.Context, snap market.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return err
	}
	houses, err := encodeHouses(snap.Houses)
	if err != nil {
		return err
	}
	portfolios, err := encodePortfolios(snap.Portfolios)
	if err != nil {
		return err
	}
	users, err := encodeUsers(snap.Users)
	if err != nil {
		return err
	}
	// Users go first so a crash between replaces never leaves a portfolio
	// or holding that names a missing user.
	return f.replaceAll([]document{
		{name: UsersFile, raw: users},
		{name: PortfoliosFile, raw: portfolios},
		{name: HousesFile, raw: houses},
	})
}

func (f *File) SaveUsers(ctx context.Context, users []market.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encodeUsers(users)
	if err != nil {
		return err
	}
	return f.write(UsersFile, raw)
}

func (f *File) read(name string) ([]byte, error) {
	raw, err := os.ReadFile(filepath.Join(f.Dir, name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return raw, nil
}

type document struct {
	name string
	raw  []byte
}

// previous is a document's content before replaceAll touched it.
type previous struct {
	name    string
	raw     []byte
	existed bool
}

// replaceAll stages every document before replacing any of them. If a
// replace fails, the documents already replaced get their previous content
// back, so the directory holds either the old set or the new set.
func (f *File) replaceAll(docs []document) error {
	tmps := make([]string, 0, len(docs))
	defer func() {
		for _, tmp := range tmps {
			os.Remove(tmp)
		}
	}()
	for _, d := range docs {
		tmp, err := f.stage(d.name, d.raw)
		if err != nil {
			return err
		}
		tmps = append(tmps, tmp)
	}

	done := make([]previous, 0, len(docs))
	for i, d := range docs {
		prev, err := f.previous(d.name)
		if err == nil {
			err = os.Rename(tmps[i], filepath.Join(f.Dir, d.name))
		}
		if err != nil {
			if rerr := f.restore(done); rerr != nil {
				return fmt.Errorf("replace %s: %v; restore: %w", d.name, err, rerr)
			}
			return fmt.Errorf("replace %s: %w", d.name, err)
		}
		done = append(done, prev)
	}
	return nil
}

func (f *File) previous(name string) (previous, error) {
	raw, err := os.ReadFile(filepath.Join(f.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return previous{name: name}, nil
	}
	if err != nil {
		return previous{}, err
	}
	return previous{name: name, raw: raw, existed: true}, nil
}

func (f *File) restore(done []previous) error {
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		p := done[i]
		if !p.existed {
			if err := os.Remove(filepath.Join(f.Dir, p.name)); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		if err := f.write(p.name, p.raw); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// write replaces name atomically so readers never see a partial document.
func (f *File) write(name string, raw []byte) error {
	tmp, err := f.stage(name, raw)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	if err := os.Rename(tmp, filepath.Join(f.Dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// stage writes raw to a synced temp file next to name and returns its path.
func (f *File) stage(name string, raw []byte) (string, error) {
	tmp, err := os.CreateTemp(f.Dir, "."+name+"-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
