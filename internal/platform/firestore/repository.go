package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Collection gives typed access to one Firestore collection whose documents decode into D.
// D is the persistence model; repositories convert it into domain values.
type Collection[D any] struct {
	provider *Provider
	name     string
}

// QueryBuilder customises a collection query before execution.
type QueryBuilder func(query firestore.Query) firestore.Query

// Snapshot pairs a decoded document with its id.
type Snapshot[D any] struct {
	ID   string
	Data D
}

// NewCollection binds a Collection to provider.
func NewCollection[D any](provider *Provider, name string) *Collection[D] {
	return &Collection[D]{provider: provider, name: strings.TrimSpace(name)}
}

// Name returns the collection path.
func (c *Collection[D]) Name() string { return c.name }

// Ref returns the collection reference.
func (c *Collection[D]) Ref(ctx context.Context) (*firestore.CollectionRef, error) {
	if c == nil || c.provider == nil {
		return nil, errors.New("firestore: collection is not initialised")
	}
	if c.name == "" {
		return nil, errors.New("firestore: collection name is required")
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.name), nil
}

// Doc returns the reference to document id.
func (c *Collection[D]) Doc(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("firestore: document id is required")
	}
	ref, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}
	return ref.Doc(id), nil
}

// Get loads and decodes document id.
func (c *Collection[D]) Get(ctx context.Context, id string) (D, error) {
	var zero D
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return zero, err
	}
	snap, err := doc.Get(ctx)
	if err != nil {
		return zero, WrapError(c.op("get"), err)
	}
	return Decode[D](snap)
}

// GetAll loads the given ids in one batch, preserving order and skipping missing documents.
func (c *Collection[D]) GetAll(ctx context.Context, ids []string) ([]Snapshot[D], error) {
	if len(ids) == 0 {
		return nil, nil
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	ref, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}
	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			refs = append(refs, ref.Doc(id))
		}
	}
	snaps, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, WrapError(c.op("get_all"), err)
	}
	out := make([]Snapshot[D], 0, len(snaps))
	for _, snap := range snaps {
		if snap == nil || !snap.Exists() {
			continue
		}
		data, err := Decode[D](snap)
		if err != nil {
			return nil, err
		}
		out = append(out, Snapshot[D]{ID: snap.Ref.ID, Data: data})
	}
	return out, nil
}

// Set replaces document id with value.
func (c *Collection[D]) Set(ctx context.Context, id string, value D) error {
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	if _, err := doc.Set(ctx, value); err != nil {
		return WrapError(c.op("set"), err)
	}
	return nil
}

// Update applies a partial update and fails with NotFound when the document is missing.
func (c *Collection[D]) Update(ctx context.Context, id string, updates []firestore.Update) error {
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	if _, err := doc.Update(ctx, updates); err != nil {
		return WrapError(c.op("update"), err)
	}
	return nil
}

// Query runs the query produced by build against the collection.
func (c *Collection[D]) Query(ctx context.Context, build QueryBuilder) ([]Snapshot[D], error) {
	ref, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}
	query := ref.Query
	if build != nil {
		query = build(query)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []Snapshot[D]
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, WrapError(c.op("query"), err)
		}
		data, err := Decode[D](snap)
		if err != nil {
			return nil, err
		}
		out = append(out, Snapshot[D]{ID: snap.Ref.ID, Data: data})
	}
}

func (c *Collection[D]) op(action string) string {
	return c.name + "." + action
}

// Decode reads snap into a D.
func Decode[D any](snap *firestore.DocumentSnapshot) (D, error) {
	var out D
	if snap == nil || !snap.Exists() {
		return out, NotFound("decode", "")
	}
	if err := snap.DataTo(&out); err != nil {
		return out, fmt.Errorf("firestore: decode %s: %w", snap.Ref.Path, err)
	}
	return out, nil
}
