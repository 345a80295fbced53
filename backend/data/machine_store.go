package data

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/marcusklein/windowtrader/backend/machine"
)

// MachineStore persists Symbol Machine snapshots (spec.md §6.7), so a
// restart can resume a machine's window/anchor state instead of starting
// every instrument flat.
type MachineStore interface {
	SaveSnapshot(snap machine.Snapshot) error
	GetSnapshot(sym string) (*machine.Snapshot, error)
	GetAllSnapshots() ([]machine.Snapshot, error)
}

// SQLMachineStore implements MachineStore using SQLite.
type SQLMachineStore struct {
	db *DB
}

// NewMachineStore creates a new SQL-based machine snapshot store.
func NewMachineStore(db *DB) *SQLMachineStore {
	return &SQLMachineStore{db: db}
}

type snapshotRow struct {
	Sym                 string    `db:"sym"`
	State               string    `db:"state"`
	SavedBuyLTP         float64   `db:"saved_buy_ltp"`
	SavedLastBuyLTP     float64   `db:"saved_last_buy_ltp"`
	SavedSellLTP        float64   `db:"saved_sell_ltp"`
	SellStartAnchor     *float64  `db:"sell_start_anchor"`
	WindowID            int64     `db:"window_id"`
	WaitMode            string    `db:"wait_mode"`
	PendingBuyAfterSell bool      `db:"pending_buy_after_sell"`
	Silenced            bool      `db:"silenced"`
	UpdatedAt           time.Time `db:"updated_at"`
}

func (r snapshotRow) toSnapshot() machine.Snapshot {
	return machine.Snapshot{
		Sym:                 r.Sym,
		State:                machine.State(r.State),
		SavedBuyLTP:         r.SavedBuyLTP,
		SavedLastBuyLTP:     r.SavedLastBuyLTP,
		SavedSellLTP:        r.SavedSellLTP,
		SellStartAnchor:     r.SellStartAnchor,
		WindowID:            uint64(r.WindowID),
		WaitMode:            machine.WaitMode(r.WaitMode),
		PendingBuyAfterSell: r.PendingBuyAfterSell,
		Silenced:            r.Silenced,
	}
}

// SaveSnapshot upserts a machine's current state.
func (s *SQLMachineStore) SaveSnapshot(snap machine.Snapshot) error {
	query := `
		INSERT OR REPLACE INTO machine_snapshots
			(sym, state, saved_buy_ltp, saved_last_buy_ltp, saved_sell_ltp, sell_start_anchor,
			 window_id, wait_mode, pending_buy_after_sell, silenced, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		snap.Sym,
		string(snap.State),
		snap.SavedBuyLTP,
		snap.SavedLastBuyLTP,
		snap.SavedSellLTP,
		snap.SellStartAnchor,
		int64(snap.WindowID),
		string(snap.WaitMode),
		snap.PendingBuyAfterSell,
		snap.Silenced,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save machine snapshot: %w", err)
	}
	return nil
}

// GetSnapshot retrieves a single machine's last-saved state.
func (s *SQLMachineStore) GetSnapshot(sym string) (*machine.Snapshot, error) {
	var row snapshotRow
	query := `
		SELECT sym, state, saved_buy_ltp, saved_last_buy_ltp, saved_sell_ltp, sell_start_anchor,
		       window_id, wait_mode, pending_buy_after_sell, silenced, updated_at
		FROM machine_snapshots
		WHERE sym = ?
	`
	err := s.db.Get(&row, query, sym)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no snapshot for %s", sym)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get machine snapshot: %w", err)
	}
	snap := row.toSnapshot()
	return &snap, nil
}

// GetAllSnapshots retrieves every persisted machine's last-saved state,
// used to resume the Registry on startup.
func (s *SQLMachineStore) GetAllSnapshots() ([]machine.Snapshot, error) {
	var rows []snapshotRow
	query := `
		SELECT sym, state, saved_buy_ltp, saved_last_buy_ltp, saved_sell_ltp, sell_start_anchor,
		       window_id, wait_mode, pending_buy_after_sell, silenced, updated_at
		FROM machine_snapshots
		ORDER BY sym ASC
	`
	err := s.db.Select(&rows, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all machine snapshots: %w", err)
	}
	out := make([]machine.Snapshot, len(rows))
	for i, r := range rows {
		out[i] = r.toSnapshot()
	}
	return out, nil
}
