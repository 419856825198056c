package link

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/nasdf/capydoc/core"
	"github.com/nasdf/capydoc/schema"

	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/node/basicnode"
	"go.uber.org/zap"
)

// Recorder is an observer that mirrors committed entities into a Store.
//
// Every created or updated entity is encoded and stored as its own block.
// Flush writes a root node mapping each collection to its id to link map.
type Recorder struct {
	store  *Store
	logger *zap.Logger

	mu    sync.Mutex
	links map[string]map[string]datamodel.Link
	root  datamodel.Link
}

// NewRecorder returns a recorder for the collections of the given schema.
func NewRecorder(store *Store, s *schema.Schema, logger *zap.Logger) (*Recorder, error) {
	if _, err := s.TypeSystem(); err != nil {
		return nil, fmt.Errorf("schema cannot be persisted: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		store:  store,
		logger: logger,
		links:  make(map[string]map[string]datamodel.Link),
	}
	for _, name := range s.Names() {
		r.links[name] = make(map[string]datamodel.Link)
	}
	return r, nil
}

// Store returns the store the recorder writes to.
func (r *Recorder) Store() *Store {
	return r.store
}

// Observe implements core.Observer.
func (r *Recorder) Observe(ctx context.Context, change core.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	links, ok := r.links[change.Collection]
	if !ok {
		return fmt.Errorf("unknown collection %s", change.Collection)
	}
	switch change.Kind {
	case core.ChangeCreate, core.ChangeUpdate:
		lnk, err := r.storeEntity(ctx, change.Entity)
		if err != nil {
			return err
		}
		links[change.Entity.ID] = lnk
	case core.ChangeDelete:
		delete(links, change.Entity.ID)
	case core.ChangeRestore:
		next := make(map[string]datamodel.Link, change.Snapshot.Len())
		for _, e := range change.Snapshot.Entities() {
			lnk, err := r.storeEntity(ctx, e)
			if err != nil {
				return err
			}
			next[e.ID] = lnk
		}
		r.links[change.Collection] = next
	default:
		return fmt.Errorf("unknown change kind %s", change.Kind)
	}
	return nil
}

func (r *Recorder) storeEntity(ctx context.Context, e *core.Entity) (datamodel.Link, error) {
	n, err := Encode(e)
	if err != nil {
		return nil, err
	}
	return r.store.Store(ctx, n)
}

// Flush writes the root node and returns its link.
func (r *Recorder) Flush(ctx context.Context) (datamodel.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.links))
	for name := range r.links {
		names = append(names, name)
	}
	slices.Sort(names)

	nb := basicnode.Prototype.Map.NewBuilder()
	ma, err := nb.BeginMap(int64(len(names)))
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		links := r.links[name]
		ids := make([]string, 0, len(links))
		for id := range links {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		ea, err := ma.AssembleEntry(name)
		if err != nil {
			return nil, err
		}
		cma, err := ea.BeginMap(int64(len(ids)))
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			va, err := cma.AssembleEntry(id)
			if err != nil {
				return nil, err
			}
			if err := va.AssignLink(links[id]); err != nil {
				return nil, err
			}
		}
		if err := cma.Finish(); err != nil {
			return nil, err
		}
	}
	if err := ma.Finish(); err != nil {
		return nil, err
	}
	root, err := r.store.Store(ctx, nb.Build())
	if err != nil {
		return nil, err
	}
	r.root = root
	r.logger.Debug("flushed root", zap.String("root", root.String()))
	return root, nil
}

// Root returns the link of the last flushed root.
func (r *Recorder) Root() datamodel.Link {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.root
}

// Load decodes every collection below the given root link.
func (r *Recorder) Load(ctx context.Context, root datamodel.Link) (map[string][]*core.Entity, error) {
	rootNode, err := r.store.Load(ctx, root, basicnode.Prototype.Map)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]*core.Entity)
	for iter := rootNode.MapIterator(); !iter.Done(); {
		k, v, err := iter.Next()
		if err != nil {
			return nil, err
		}
		name, err := k.AsString()
		if err != nil {
			return nil, err
		}
		var entities []*core.Entity
		for eiter := v.MapIterator(); !eiter.Done(); {
			_, ln, err := eiter.Next()
			if err != nil {
				return nil, err
			}
			lnk, err := ln.AsLink()
			if err != nil {
				return nil, err
			}
			n, err := r.store.Load(ctx, lnk, basicnode.Prototype.Map)
			if err != nil {
				return nil, err
			}
			e, err := Decode(n)
			if err != nil {
				return nil, err
			}
			entities = append(entities, e)
		}
		out[name] = entities
	}
	return out, nil
}

// Get decodes a single entity below the given root link.
func (r *Recorder) Get(ctx context.Context, root datamodel.Link, collection, id string) (*core.Entity, error) {
	rootNode, err := r.store.Load(ctx, root, basicnode.Prototype.Map)
	if err != nil {
		return nil, err
	}
	n, err := r.store.GetNode(ctx, datamodel.ParsePath(collection+"/"+id), rootNode)
	if err != nil {
		return nil, &core.NotFoundError{Collection: collection, ID: id}
	}
	return Decode(n)
}
