// Package registry applies finished splits to a land registry of parcel tokens.
package registry

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/tdewolff/parcel"
	"go.uber.org/zap"
)

var (
	ErrUnknownParcel = errors.New("unknown parcel")
	ErrNotOwner      = errors.New("not the owner of the parcel")

	// ErrSubjectChanged is returned when the parcel's contour differs from the subject that was split.
	ErrSubjectChanged = errors.New("parcel changed since the split started")
)

// ID identifies a parcel token.
type ID uint64

// Registry holds the contours and owners of parcel tokens.
type Registry interface {
	Contour(id ID) (parcel.Contour, error)
	Owner(id ID) (string, error)
	SetContour(id ID, c parcel.Contour) error
	Mint(owner string, c parcel.Contour) (ID, error)
}

// Burner is a Registry that can remove parcels.
type Burner interface {
	Registry
	Burn(id ID) error
}

// Split is a finished split of a parcel, such as a *parcel.SplitOperation.
type Split interface {
	Subject() parcel.Contour
	Epsilon() int64
	SubjectOutput() (parcel.Contour, error)
	ResultPolygons() ([]parcel.Contour, error)
}

// ApplySplit replaces the contour of parcel id by the remaining subject polygon of op and mints one parcel per clipped-off polygon for the same owner. The operation must be finished and its subject must be the current contour of the parcel. All output polygons are validated before the registry is changed, and parcels minted by a split that fails halfway are burned again when the registry is a Burner. An unchanged split leaves the registry untouched.
func ApplySplit(reg Registry, id ID, op Split) ([]ID, error) {
	remaining, err := op.SubjectOutput()
	if err != nil {
		return nil, err
	}
	results, err := op.ResultPolygons()
	if err != nil {
		return nil, err
	}

	c, err := reg.Contour(id)
	if err != nil {
		return nil, err
	} else if !c.Equals(op.Subject()) {
		return nil, errors.Wrapf(ErrSubjectChanged, "parcel %d", id)
	}
	owner, err := reg.Owner(id)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return []ID{}, nil
	}

	if err := remaining.Validate(op.Epsilon()); err != nil {
		return nil, errors.Wrap(err, "remaining polygon")
	}
	for i, result := range results {
		if err := result.Validate(op.Epsilon()); err != nil {
			return nil, errors.Wrapf(err, "result polygon %d", i)
		}
	}

	ids := make([]ID, 0, len(results))
	for _, result := range results {
		minted, err := reg.Mint(owner, result)
		if err != nil {
			return nil, rollback(reg, ids, err)
		}
		ids = append(ids, minted)
	}
	if err := reg.SetContour(id, remaining); err != nil {
		return nil, rollback(reg, ids, err)
	}
	parcel.Logger().Info("applied split",
		zap.Uint64("parcel", uint64(id)),
		zap.String("owner", owner),
		zap.Int("minted", len(ids)))
	return ids, nil
}

func rollback(reg Registry, ids []ID, err error) error {
	burner, ok := reg.(Burner)
	if !ok {
		return err
	}
	for _, id := range ids {
		if errBurn := burner.Burn(id); errBurn != nil {
			parcel.Logger().Error("burn after failed split", zap.Uint64("parcel", uint64(id)), zap.Error(errBurn))
		}
	}
	return err
}

// Merge merges parcel source into dest when both have the same owner and share a boundary chain. The source parcel is burned.
func Merge(reg Burner, source, dest ID, owner string) error {
	sc, err := reg.Contour(source)
	if err != nil {
		return err
	}
	dc, err := reg.Contour(dest)
	if err != nil {
		return err
	}
	for _, id := range []ID{source, dest} {
		if o, err := reg.Owner(id); err != nil {
			return err
		} else if o != owner {
			return errors.Wrapf(ErrNotOwner, "parcel %d", id)
		}
	}

	merged, err := parcel.Merge(sc, dc, parcel.Epsilon)
	if err != nil {
		return err
	} else if err := parcel.CheckMerge(sc, dc, merged, parcel.Epsilon); err != nil {
		return err
	}
	if err := reg.SetContour(dest, merged); err != nil {
		return err
	}
	return reg.Burn(source)
}

type token struct {
	owner   string
	contour parcel.Contour
}

// Memory is an in-memory Registry that is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	tokens map[ID]token
	next   ID
}

// NewMemory returns an empty registry. IDs start at 1.
func NewMemory() *Memory {
	return &Memory{
		tokens: map[ID]token{},
		next:   1,
	}
}

func (m *Memory) Contour(id ID) (parcel.Contour, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownParcel, "%d", id)
	}
	return t.contour.Copy(), nil
}

func (m *Memory) Owner(id ID) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[id]
	if !ok {
		return "", errors.Wrapf(ErrUnknownParcel, "%d", id)
	}
	return t.owner, nil
}

func (m *Memory) SetContour(id ID, c parcel.Contour) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok {
		return errors.Wrapf(ErrUnknownParcel, "%d", id)
	}
	t.contour = c.Copy()
	m.tokens[id] = t
	return nil
}

// Mint adds a parcel after validating its contour.
func (m *Memory) Mint(owner string, c parcel.Contour) (ID, error) {
	if err := c.Validate(parcel.Epsilon); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	m.tokens[id] = token{owner, c.Copy()}
	return id, nil
}

// Burn removes a parcel.
func (m *Memory) Burn(id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[id]; !ok {
		return errors.Wrapf(ErrUnknownParcel, "%d", id)
	}
	delete(m.tokens, id)
	return nil
}

// IDs returns the IDs of all parcels in increasing order.
func (m *Memory) IDs() []ID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]ID, 0, len(m.tokens))
	for id := range m.tokens {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
