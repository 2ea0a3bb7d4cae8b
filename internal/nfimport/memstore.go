package nfimport

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store used by tests and the CLI dry-run mode.
// All methods copy records on the way in and out so callers never share
// mutable state with the store.
type MemStore struct {
	mu          sync.RWMutex
	batches     map[string]*Batch
	lines       map[string]*Line
	changes     map[string]*AppliedChange
	items       map[string]*Item
	variations  map[string]*ItemVariation // keyed by item id
	costs       map[string]*CostRecord    // keyed by item variation id
	aliases     map[string]*ItemAlias     // keyed by normalized alias
	conversions []*UnitConversion
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		batches:    make(map[string]*Batch),
		lines:      make(map[string]*Line),
		changes:    make(map[string]*AppliedChange),
		items:      make(map[string]*Item),
		variations: make(map[string]*ItemVariation),
		costs:      make(map[string]*CostRecord),
		aliases:    make(map[string]*ItemAlias),
	}
}

// SeedItem registers a catalog item for tests.
func (m *MemStore) SeedItem(item *Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *item
	m.items[item.ID] = &c
}

// SeedConversion registers a measurement unit conversion for tests.
func (m *MemStore) SeedConversion(conv *UnitConversion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *conv
	m.conversions = append(m.conversions, &c)
}

// SeedAlias registers an import alias for tests.
func (m *MemStore) SeedAlias(alias *ItemAlias) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *alias
	m.aliases[alias.AliasNormalized] = &c
}

// DeleteItem removes a catalog item, simulating catalog drift between upload
// and apply.
func (m *MemStore) DeleteItem(itemID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, itemID)
}

func copyBatch(b *Batch) *Batch {
	c := *b
	return &c
}

func copyLine(l *Line) *Line {
	c := *l
	return &c
}

func copyChange(ch *AppliedChange) *AppliedChange {
	c := *ch
	return &c
}

func (m *MemStore) CreateBatch(_ context.Context, batch *Batch, lines []*Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[batch.ID] = copyBatch(batch)
	for _, line := range lines {
		m.lines[line.ID] = copyLine(line)
	}
	return nil
}

func (m *MemStore) GetBatch(_ context.Context, batchID string) (*Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	batch, ok := m.batches[batchID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBatch(batch), nil
}

func (m *MemStore) ListBatches(_ context.Context, limit int) ([]*Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	batches := make([]*Batch, 0, len(m.batches))
	for _, batch := range m.batches {
		if batch.ArchivedAt != nil {
			continue
		}
		batches = append(batches, copyBatch(batch))
	}
	sort.Slice(batches, func(i, j int) bool {
		return batches[i].CreatedAt.After(batches[j].CreatedAt)
	})
	if len(batches) > limit {
		batches = batches[:limit]
	}
	return batches, nil
}

func (m *MemStore) UpdateBatchStatus(_ context.Context, batchID string, summary BatchSummary, status BatchStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, ok := m.batches[batchID]
	if !ok {
		return ErrNotFound
	}
	batch.Summary = summary
	batch.Status = status
	return nil
}

func (m *MemStore) SetBatchApplied(_ context.Context, batchID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, ok := m.batches[batchID]
	if !ok {
		return ErrNotFound
	}
	batch.AppliedAt = &at
	return nil
}

func (m *MemStore) SetBatchRolledBack(_ context.Context, batchID string, at time.Time, status BatchStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, ok := m.batches[batchID]
	if !ok {
		return ErrNotFound
	}
	batch.RolledBackAt = &at
	batch.Status = status
	return nil
}

func (m *MemStore) SetBatchArchived(_ context.Context, batchID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, ok := m.batches[batchID]
	if !ok {
		return ErrNotFound
	}
	batch.ArchivedAt = &at
	batch.Status = BatchArchived
	return nil
}

func (m *MemStore) ListLines(_ context.Context, batchID string) ([]*Line, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lines := make([]*Line, 0)
	for _, line := range m.lines {
		if line.BatchID == batchID {
			lines = append(lines, copyLine(line))
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].RowNumber < lines[j].RowNumber
	})
	return lines, nil
}

func (m *MemStore) GetLine(_ context.Context, lineID string) (*Line, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	line, ok := m.lines[lineID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyLine(line), nil
}

func (m *MemStore) SelectLines(_ context.Context, sel LineSelector) ([]*Line, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lines := make([]*Line, 0)
	for _, line := range m.lines {
		if line.BatchID != sel.BatchID {
			continue
		}
		if sel.ApplyToAllSameIngredient {
			if line.IngredientNameNormalized == sel.IngredientNameNormalized && line.AppliedAt == nil {
				lines = append(lines, copyLine(line))
			}
			continue
		}
		if line.ID == sel.LineID {
			lines = append(lines, copyLine(line))
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].RowNumber < lines[j].RowNumber
	})
	return lines, nil
}

func (m *MemStore) UpdateLine(_ context.Context, line *Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lines[line.ID]; !ok {
		return ErrNotFound
	}
	m.lines[line.ID] = copyLine(line)
	return nil
}

// batchBlocksDuplicates reports whether lines applied on this batch still
// count as duplicates for other batches.
func (m *MemStore) batchBlocksDuplicates(batchID string) bool {
	batch, ok := m.batches[batchID]
	if !ok {
		return false
	}
	if batch.RolledBackAt != nil {
		return false
	}
	return batch.Status == BatchApplied || batch.Status == BatchPartial
}

func (m *MemStore) AppliedFingerprints(_ context.Context, fingerprints []string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wanted := make(map[string]bool, len(fingerprints))
	for _, fp := range fingerprints {
		if fp != "" {
			wanted[fp] = true
		}
	}
	found := make(map[string]bool)
	for _, line := range m.lines {
		if line.AppliedAt == nil || !wanted[line.SourceFingerprint] {
			continue
		}
		if m.batchBlocksDuplicates(line.BatchID) {
			found[line.SourceFingerprint] = true
		}
	}
	return found, nil
}

func (m *MemStore) FindAppliedDuplicate(_ context.Context, fingerprint, excludeLineID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, line := range m.lines {
		if line.ID == excludeLineID || line.AppliedAt == nil || line.SourceFingerprint != fingerprint {
			continue
		}
		batch, ok := m.batches[line.BatchID]
		if ok && batch.RolledBackAt == nil {
			return line.ID, nil
		}
	}
	return "", nil
}

func (m *MemStore) ListActiveItems(_ context.Context) ([]*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]*Item, 0, len(m.items))
	for _, item := range m.items {
		if !item.Active {
			continue
		}
		c := *item
		items = append(items, &c)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

func (m *MemStore) GetItem(_ context.Context, itemID string) (*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[itemID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *item
	return &c, nil
}

func (m *MemStore) ListAliases(_ context.Context, sourceSystem, sourceType string) ([]*ItemAlias, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	aliases := make([]*ItemAlias, 0, len(m.aliases))
	for _, alias := range m.aliases {
		if !alias.Active || alias.SourceSystem != sourceSystem || alias.SourceType != sourceType {
			continue
		}
		c := *alias
		aliases = append(aliases, &c)
	}
	return aliases, nil
}

func (m *MemStore) UpsertAlias(_ context.Context, alias *ItemAlias) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.aliases[alias.AliasNormalized]; ok {
		existing.AliasName = alias.AliasName
		existing.ItemID = alias.ItemID
		existing.Active = true
		return nil
	}
	c := *alias
	m.aliases[alias.AliasNormalized] = &c
	return nil
}

func (m *MemStore) ListUnitConversions(_ context.Context) ([]*UnitConversion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conversions := make([]*UnitConversion, 0, len(m.conversions))
	for _, conv := range m.conversions {
		c := *conv
		conversions = append(conversions, &c)
	}
	return conversions, nil
}

func (m *MemStore) EnsureBaseVariation(_ context.Context, itemID string) (*ItemVariation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[itemID]; !ok {
		return nil, ErrNotFound
	}
	if v, ok := m.variations[itemID]; ok {
		c := *v
		return &c, nil
	}
	v := &ItemVariation{ID: uuid.NewString(), ItemID: itemID, Name: "Base"}
	m.variations[itemID] = v
	c := *v
	return &c, nil
}

func (m *MemStore) GetCurrentCost(_ context.Context, itemVariationID string) (*CostRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.costs[itemVariationID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *record
	return &c, nil
}

func (m *MemStore) SetCurrentCost(_ context.Context, record *CostRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *record
	m.costs[record.ItemVariationID] = &c
	return nil
}

func (m *MemStore) CreateAppliedChange(_ context.Context, change *AppliedChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes[change.ID] = copyChange(change)
	return nil
}

func (m *MemStore) ListPendingChanges(_ context.Context, batchID string) ([]*AppliedChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	changes := make([]*AppliedChange, 0)
	for _, change := range m.changes {
		if change.BatchID == batchID && change.RolledBackAt == nil {
			changes = append(changes, copyChange(change))
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].AppliedAt.After(changes[j].AppliedAt)
	})
	return changes, nil
}

func (m *MemStore) ListRecentChanges(_ context.Context, batchID string, limit int) ([]*AppliedChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	changes := make([]*AppliedChange, 0)
	for _, change := range m.changes {
		if change.BatchID == batchID {
			changes = append(changes, copyChange(change))
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].AppliedAt.After(changes[j].AppliedAt)
	})
	if len(changes) > limit {
		changes = changes[:limit]
	}
	return changes, nil
}

func (m *MemStore) SetChangeRollback(_ context.Context, changeID, status string, message *string, at *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	change, ok := m.changes[changeID]
	if !ok {
		return ErrNotFound
	}
	change.RollbackStatus = &status
	change.RollbackMessage = message
	change.RolledBackAt = at
	return nil
}
