// Package sqlitestore persists cache.Store data in a SQLite database via
// sqlx and the pure-Go modernc.org/sqlite driver, giving the engine a real
// persistence option beyond the memory-only backend.
package sqlitestore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	imap "github.com/trojita/goimap-engine"
	"github.com/trojita/goimap-engine/cache"
)

const schema = `
CREATE TABLE IF NOT EXISTS child_mailboxes (
	parent_name TEXT NOT NULL,
	name        TEXT NOT NULL,
	sep         TEXT NOT NULL,
	attrs       TEXT NOT NULL,
	PRIMARY KEY (parent_name, name)
);

CREATE TABLE IF NOT EXISTS message_metadata (
	uid      INTEGER PRIMARY KEY,
	envelope TEXT NOT NULL,
	size     INTEGER NOT NULL,
	body     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS message_parts (
	uid     INTEGER NOT NULL,
	part_id TEXT NOT NULL,
	bytes   BLOB NOT NULL,
	PRIMARY KEY (uid, part_id)
);
`

// Store is a sqlx/modernc.org-sqlite backed cache.Store.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitestore: schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

type mailboxRow struct {
	Name  string `db:"name"`
	Sep   string `db:"sep"`
	Attrs string `db:"attrs"`
}

func (s *Store) ChildMailboxes(parentName string) ([]cache.MailboxEntry, bool) {
	var rows []mailboxRow
	if err := s.db.Select(&rows, `SELECT name, sep, attrs FROM child_mailboxes WHERE parent_name = ?`, parentName); err != nil {
		return nil, false
	}
	if len(rows) == 0 {
		return nil, false
	}

	entries := make([]cache.MailboxEntry, 0, len(rows))
	for _, r := range rows {
		if r.Name == "" {
			continue // sentinel marker for "fetched but empty"
		}
		var attrs []imap.MailboxAttr
		json.Unmarshal([]byte(r.Attrs), &attrs)
		entries = append(entries, cache.MailboxEntry{Name: r.Name, Sep: r.Sep, Attrs: attrs})
	}
	return entries, true
}

func (s *Store) ForgetChildMailboxes(parentName string) {
	s.db.Exec(`DELETE FROM child_mailboxes WHERE parent_name = ?`, parentName)
}

func (s *Store) SetChildMailboxes(parentName string, entries []cache.MailboxEntry) {
	tx, err := s.db.Beginx()
	if err != nil {
		return
	}
	defer tx.Rollback()

	tx.Exec(`DELETE FROM child_mailboxes WHERE parent_name = ?`, parentName)
	if len(entries) == 0 {
		// Write a sentinel row so a later read distinguishes "fetched,
		// empty" from "never fetched".
		tx.Exec(`INSERT INTO child_mailboxes (parent_name, name, sep, attrs) VALUES (?, '', '', '[]')`, parentName)
	}
	for _, e := range entries {
		attrs, _ := json.Marshal(e.Attrs)
		tx.Exec(`INSERT INTO child_mailboxes (parent_name, name, sep, attrs) VALUES (?, ?, ?, ?)`,
			parentName, e.Name, e.Sep, string(attrs))
	}
	tx.Commit()
}

// bodyStructureDTO is the JSON-serializable shadow of imap.BodyStructure,
// since the interface itself carries no exported concrete type tag.
type bodyStructureDTO struct {
	Multi bool                 `json:"multi"`
	Single *singlePartDTO      `json:"single,omitempty"`
	Parts  []*bodyStructureDTO `json:"parts,omitempty"`
	Subtype string             `json:"subtype,omitempty"`
}

type singlePartDTO struct {
	Type, Subtype string
	Params        map[string]string
	ID, Description, Encoding string
	Size                      uint32
}

func toDTO(bs imap.BodyStructure) *bodyStructureDTO {
	if bs == nil {
		return nil
	}
	switch t := bs.(type) {
	case *imap.BodyStructureMultiPart:
		dto := &bodyStructureDTO{Multi: true, Subtype: t.Subtype}
		for _, c := range t.Parts {
			dto.Parts = append(dto.Parts, toDTO(c))
		}
		return dto
	case *imap.BodyStructureSinglePart:
		return &bodyStructureDTO{Single: &singlePartDTO{
			Type: t.Type, Subtype: t.Subtype, Params: t.Params,
			ID: t.ID, Description: t.Description, Encoding: t.Encoding, Size: t.Size,
		}}
	}
	return nil
}

func fromDTO(dto *bodyStructureDTO) imap.BodyStructure {
	if dto == nil {
		return nil
	}
	if dto.Multi {
		mp := &imap.BodyStructureMultiPart{Type: "multipart", Subtype: dto.Subtype}
		for _, c := range dto.Parts {
			mp.Parts = append(mp.Parts, fromDTO(c))
		}
		return mp
	}
	if dto.Single == nil {
		return nil
	}
	s := dto.Single
	return &imap.BodyStructureSinglePart{
		Type: s.Type, Subtype: s.Subtype, Params: s.Params,
		ID: s.ID, Description: s.Description, Encoding: s.Encoding, Size: s.Size,
	}
}

type metadataRow struct {
	Envelope string `db:"envelope"`
	Size     int64  `db:"size"`
	Body     string `db:"body"`
}

func (s *Store) MessageMetadata(uid uint32) (*cache.MessageMetadata, bool) {
	var row metadataRow
	err := s.db.Get(&row, `SELECT envelope, size, body FROM message_metadata WHERE uid = ?`, uid)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false
		}
		return nil, false
	}
	var env imap.Envelope
	json.Unmarshal([]byte(row.Envelope), &env)
	var dto bodyStructureDTO
	json.Unmarshal([]byte(row.Body), &dto)
	return &cache.MessageMetadata{Envelope: &env, Size: row.Size, BodyStructure: fromDTO(&dto)}, true
}

func (s *Store) SetMessageMetadata(uid uint32, meta *cache.MessageMetadata) {
	env, _ := json.Marshal(meta.Envelope)
	body, _ := json.Marshal(toDTO(meta.BodyStructure))
	s.db.Exec(`INSERT INTO message_metadata (uid, envelope, size, body) VALUES (?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET envelope = excluded.envelope, size = excluded.size, body = excluded.body`,
		uid, string(env), meta.Size, string(body))
}

func (s *Store) MessagePart(uid uint32, partID string) ([]byte, bool) {
	var data []byte
	err := s.db.Get(&data, `SELECT bytes FROM message_parts WHERE uid = ? AND part_id = ?`, uid, partID)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (s *Store) SetMessagePart(uid uint32, partID string, data []byte) {
	s.db.Exec(`INSERT INTO message_parts (uid, part_id, bytes) VALUES (?, ?, ?)
		ON CONFLICT(uid, part_id) DO UPDATE SET bytes = excluded.bytes`, uid, partID, data)
}
