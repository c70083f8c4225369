package world

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

// ErrSlotNotFound indicates the requested slot holds no save.
var ErrSlotNotFound = errors.New("slot not found")

// SlotInfo is one row of the save/load menu.
type SlotInfo struct {
	Slot     int
	SavedAt  time.Time
	PlaySecs int32
	Leader   string
	Location string
}

// SlotStore keeps numbered save files in one directory with a SQLite
// index of their menu metadata. The files are the truth; the index is
// rebuilt from them whenever it is missing or unreadable.
type SlotStore struct {
	dir    string
	dbPath string
	db     *sql.DB
	log    commonlog.Logger
}

const slotSchema = `CREATE TABLE IF NOT EXISTS slots (
	slot INTEGER PRIMARY KEY,
	saved_at INTEGER NOT NULL,
	play_secs INTEGER NOT NULL,
	leader TEXT NOT NULL,
	location TEXT NOT NULL
)`

// OpenSlots opens the save directory, creating it and the index as
// needed.
func OpenSlots(dir string) (*SlotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating save dir: %w", err)
	}
	st := &SlotStore{
		dir:    dir,
		dbPath: filepath.Join(dir, "slots.db"),
		log:    commonlog.GetLogger("epoch.world"),
	}
	if err := st.openIndex(); err != nil {
		return nil, err
	}
	if err := st.reconcile(); err != nil {
		st.db.Close()
		return nil, err
	}
	return st, nil
}

func (st *SlotStore) openIndex() error {
	db, err := sql.Open("sqlite", st.dbPath)
	if err != nil {
		return fmt.Errorf("opening slot index: %w", err)
	}
	if _, err := db.Exec(slotSchema); err != nil {
		// A corrupt index is not fatal: the save files rebuild it.
		st.log.Warningf("slot index unreadable, recreating: %v", err)
		db.Close()
		if err := os.Remove(st.dbPath); err != nil {
			return fmt.Errorf("removing slot index: %w", err)
		}
		if db, err = sql.Open("sqlite", st.dbPath); err != nil {
			return fmt.Errorf("opening slot index: %w", err)
		}
		if _, err := db.Exec(slotSchema); err != nil {
			db.Close()
			return fmt.Errorf("creating slot index: %w", err)
		}
	}
	st.db = db
	return nil
}

// reconcile makes the index agree with the files: rows without a file
// are dropped, files without a row are re-indexed.
func (st *SlotStore) reconcile() error {
	indexed := make(map[int]bool)
	rows, err := st.db.Query("SELECT slot FROM slots")
	if err != nil {
		return fmt.Errorf("reading slot index: %w", err)
	}
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return fmt.Errorf("reading slot index: %w", err)
		}
		indexed[n] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading slot index: %w", err)
	}
	rows.Close()

	present := make(map[int]bool)
	for _, n := range st.slotFiles() {
		present[n] = true
		if !indexed[n] {
			if err := st.indexSlot(n); err != nil {
				st.log.Warningf("slot %d not indexable: %v", n, err)
			}
		}
	}
	for n := range indexed {
		if !present[n] {
			if _, err := st.db.Exec("DELETE FROM slots WHERE slot = ?", n); err != nil {
				return fmt.Errorf("pruning slot index: %w", err)
			}
		}
	}
	return nil
}

func (st *SlotStore) slotFiles() []int {
	matches, err := filepath.Glob(filepath.Join(st.dir, "slot-*.sav"))
	if err != nil {
		return nil
	}
	var out []int
	for _, m := range matches {
		var n int
		if _, err := fmt.Sscanf(filepath.Base(m), "slot-%d.sav", &n); err == nil && n >= 1 {
			out = append(out, n)
		}
	}
	return out
}

// indexSlot re-derives a slot's menu row by decoding its file.
func (st *SlotStore) indexSlot(n int) error {
	data, err := os.ReadFile(st.slotPath(n))
	if err != nil {
		return err
	}
	s, created, err := Load(data)
	if err != nil {
		return err
	}
	return st.writeRow(n, created, s)
}

func (st *SlotStore) writeRow(n int, at time.Time, s *State) error {
	leader := ""
	if m := s.Leader(); m != nil {
		leader = m.Name
	}
	_, err := st.db.Exec(
		"INSERT OR REPLACE INTO slots (slot, saved_at, play_secs, leader, location) VALUES (?, ?, ?, ?, ?)",
		n, at.Unix(), s.PlayTimeSeconds(), leader, s.LocationName(),
	)
	if err != nil {
		return fmt.Errorf("updating slot index: %w", err)
	}
	return nil
}

func (st *SlotStore) slotPath(n int) string {
	return filepath.Join(st.dir, fmt.Sprintf("slot-%d.sav", n))
}

// SaveSlot writes the state into slot n. The file lands atomically;
// the index row follows.
func (st *SlotStore) SaveSlot(n int, s *State, now time.Time) error {
	if n < 1 {
		return fmt.Errorf("slot %d out of range", n)
	}
	data, err := s.Save(now)
	if err != nil {
		return err
	}
	path := st.slotPath(n)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing save: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing save: %w", err)
	}
	return st.writeRow(n, now, s)
}

// LoadSlot reads the save in slot n.
func (st *SlotStore) LoadSlot(n int) (*State, error) {
	data, err := os.ReadFile(st.slotPath(n))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading save: %w", err)
	}
	s, _, err := Load(data)
	return s, err
}

// DeleteSlot removes a save and its index row. Deleting an empty slot
// is not an error.
func (st *SlotStore) DeleteSlot(n int) error {
	if err := os.Remove(st.slotPath(n)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing save: %w", err)
	}
	if _, err := st.db.Exec("DELETE FROM slots WHERE slot = ?", n); err != nil {
		return fmt.Errorf("pruning slot index: %w", err)
	}
	return nil
}

// List returns occupied slots in order.
func (st *SlotStore) List() ([]SlotInfo, error) {
	rows, err := st.db.Query(
		"SELECT slot, saved_at, play_secs, leader, location FROM slots ORDER BY slot",
	)
	if err != nil {
		return nil, fmt.Errorf("reading slot index: %w", err)
	}
	defer rows.Close()

	var out []SlotInfo
	for rows.Next() {
		var info SlotInfo
		var at int64
		if err := rows.Scan(&info.Slot, &at, &info.PlaySecs, &info.Leader, &info.Location); err != nil {
			return nil, fmt.Errorf("reading slot index: %w", err)
		}
		info.SavedAt = time.Unix(at, 0)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading slot index: %w", err)
	}
	return out, nil
}

// Close releases the index handle.
func (st *SlotStore) Close() error { return st.db.Close() }
