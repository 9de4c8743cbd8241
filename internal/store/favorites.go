package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const favoritesKey = "favorites"

type favoritesDoc struct {
	IDs []string `json:"ids"`
}

// Favorites is a set of starred screen ids or symbols.
type Favorites struct {
	backend Backend
	logger  *zap.Logger

	mu  sync.Mutex
	ids map[string]struct{}
}

func NewFavorites(ctx context.Context, backend Backend, logger *zap.Logger) (*Favorites, error) {
	f := &Favorites{
		backend: backend,
		logger:  logger.Named("favorites"),
		ids:     make(map[string]struct{}),
	}

	var doc favoritesDoc
	if _, err := loadJSON(ctx, backend, favoritesKey, &doc); err != nil {
		return nil, err
	}
	for _, id := range doc.IDs {
		if id = strings.TrimSpace(id); id != "" {
			f.ids[id] = struct{}{}
		}
	}
	return f, nil
}

func (f *Favorites) IsFavorite(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.ids[strings.TrimSpace(id)]
	return ok
}

// List returns the favorites in sorted order.
func (f *Favorites) List() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedLocked()
}

// Toggle flips id and returns whether it is now a favorite.
func (f *Favorites) Toggle(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, ErrInvalidSymbol
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	_, was := f.ids[id]
	if was {
		delete(f.ids, id)
	} else {
		f.ids[id] = struct{}{}
	}

	if err := saveJSON(ctx, f.backend, favoritesKey, favoritesDoc{IDs: f.sortedLocked()}); err != nil {
		// roll back so memory matches what is persisted
		if was {
			f.ids[id] = struct{}{}
		} else {
			delete(f.ids, id)
		}
		return was, err
	}
	f.logger.Debug("favorite toggled", zap.String("id", id), zap.Bool("favorite", !was))
	return !was, nil
}

func (f *Favorites) sortedLocked() []string {
	out := make([]string, 0, len(f.ids))
	for id := range f.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
