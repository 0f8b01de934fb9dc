package session

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/certhub/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/certhub/internal/dbx"
)

// Slot names one of the three independently stored values.
type Slot string

const (
	SlotAccessToken  Slot = "accessToken"
	SlotRefreshToken Slot = "refreshToken"
	SlotUserData     Slot = "userData"
)

var allSlots = []Slot{SlotAccessToken, SlotRefreshToken, SlotUserData}

// Record is the durable mirror of a session. Any field may be empty: the
// slots are written independently and a crash can leave a partial record.
type Record struct {
	AccessToken  string
	RefreshToken string
	UserData     []byte
}

func (r Record) Empty() bool {
	return r.AccessToken == "" && r.RefreshToken == "" && len(r.UserData) == 0
}

// Persister stores Records. Save writes non-empty fields and removes empty ones.
type Persister interface {
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, r Record) error
	Clear(ctx context.Context) error
	ClearSlots(ctx context.Context, slots ...Slot) error
}

// SQLitePersister keeps the record in the local metadata table.
type SQLitePersister struct {
	db *sql.DB
}

func NewSQLitePersister(db *sql.DB) *SQLitePersister {
	return &SQLitePersister{db: db}
}

func (p *SQLitePersister) repo(tx dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(tx)
}

func (p *SQLitePersister) Load(ctx context.Context) (Record, error) {
	vals, err := p.repo(p.db).GetMany(ctx, slotKeys(allSlots)...)
	if err != nil {
		return Record{}, fmt.Errorf("load session: %w", err)
	}
	return Record{
		AccessToken:  string(vals[string(SlotAccessToken)]),
		RefreshToken: string(vals[string(SlotRefreshToken)]),
		UserData:     vals[string(SlotUserData)],
	}, nil
}

func (p *SQLitePersister) Save(ctx context.Context, r Record) error {
	return dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := p.repo(tx)
		values := map[Slot][]byte{
			SlotAccessToken:  []byte(r.AccessToken),
			SlotRefreshToken: []byte(r.RefreshToken),
			SlotUserData:     r.UserData,
		}
		for _, slot := range allSlots {
			v := values[slot]
			if len(v) == 0 {
				if err := repo.Delete(ctx, string(slot)); err != nil {
					return err
				}
				continue
			}
			if err := repo.Set(ctx, string(slot), v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *SQLitePersister) Clear(ctx context.Context) error {
	return p.ClearSlots(ctx, allSlots...)
}

func (p *SQLitePersister) ClearSlots(ctx context.Context, slots ...Slot) error {
	if err := p.repo(p.db).Delete(ctx, slotKeys(slots)...); err != nil {
		return fmt.Errorf("clear session slots: %w", err)
	}
	return nil
}

func slotKeys(slots []Slot) []string {
	keys := make([]string, len(slots))
	for i, s := range slots {
		keys[i] = string(s)
	}
	return keys
}
