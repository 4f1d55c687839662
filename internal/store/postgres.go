package store

import (
	"context"
	"fmt"
	"time"

	"housemarket/internal/market"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE SCHEMA IF NOT EXISTS market;

CREATE TABLE IF NOT EXISTS market.houses (
	name          text PRIMARY KEY,
	ordinal       integer NOT NULL,
	current_price double precision NOT NULL,
	volume        bigint NOT NULL
);

CREATE TABLE IF NOT EXISTS market.price_history (
	house text NOT NULL REFERENCES market.houses (name) ON DELETE CASCADE,
	seq   integer NOT NULL,
	day   date NOT NULL,
	price double precision NOT NULL,
	PRIMARY KEY (house, seq)
);

CREATE TABLE IF NOT EXISTS market.users (
	username       text PRIMARY KEY,
	ordinal        integer NOT NULL,
	house          text NOT NULL,
	points_balance double precision NOT NULL
);

CREATE TABLE IF NOT EXISTS market.holdings (
	username text NOT NULL,
	house    text NOT NULL,
	ordinal  integer NOT NULL,
	shares   bigint NOT NULL,
	PRIMARY KEY (username, house)
);
`

// Postgres keeps the registries in the market schema. Ordinal columns carry
// registry insertion order.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context) (market.Snapshot, error) {
	var snap market.Snapshot
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return snap, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT name, current_price, volume
		FROM market.houses
		ORDER BY ordinal
	`)
	if err != nil {
		return snap, err
	}
	byName := make(map[string]int)
	for rows.Next() {
		var h market.HouseRecord
		if err := rows.Scan(&h.Name, &h.CurrentPrice, &h.Volume); err != nil {
			rows.Close()
			return snap, err
		}
		byName[h.Name] = len(snap.Houses)
		snap.Houses = append(snap.Houses, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	rows, err = tx.Query(ctx, `
		SELECT house, day, price
		FROM market.price_history
		ORDER BY house, seq
	`)
	if err != nil {
		return snap, err
	}
	for rows.Next() {
		var (
			house string
			day   time.Time
			price float64
		)
		if err := rows.Scan(&house, &day, &price); err != nil {
			rows.Close()
			return snap, err
		}
		i, ok := byName[house]
		if !ok {
			rows.Close()
			return snap, fmt.Errorf("%w: price history for unknown house %q", market.ErrInvalidSnapshot, house)
		}
		snap.Houses[i].PriceHistory = append(snap.Houses[i].PriceHistory, market.PricePoint{Date: market.DayOf(day), Price: price})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, err
	}

	rows, err = tx.Query(ctx, `
		SELECT username, house, points_balance
		FROM market.users
		ORDER BY ordinal
	`)
	if err != nil {
		return snap, err
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (market.UserRecord, error) {
		var u market.UserRecord
		err := row.Scan(&u.Username, &u.House, &u.PointsBalance)
		return u, err
	})
	if err != nil {
		return snap, err
	}
	snap.Users = users

	rows, err = tx.Query(ctx, `
		SELECT h.username, h.house, h.shares
		FROM market.holdings h
		LEFT JOIN market.users u ON u.username = h.username
		ORDER BY u.ordinal NULLS LAST, h.username, h.ordinal
	`)
	if err != nil {
		return snap, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			username string
			holding  market.Holding
		)
		if err := rows.Scan(&username, &holding.House, &holding.Shares); err != nil {
			return snap, err
		}
		n := len(snap.Portfolios)
		if n == 0 || snap.Portfolios[n-1].Username != username {
			snap.Portfolios = append(snap.Portfolios, market.PortfolioRecord{Username: username})
			n++
		}
		snap.Portfolios[n-1].Holdings = append(snap.Portfolios[n-1].Holdings, holding)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}
	return snap, tx.Commit(ctx)
}

func (p *Postgres) Save(ctx context.Context, snap market.Snapshot) error {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE market.holdings, market.price_history, market.users, market.houses`); err != nil {
		return err
	}

	houses := make([][]any, 0, len(snap.Houses))
	var history [][]any
	for i, h := range snap.Houses {
		houses = append(houses, []any{h.Name, i, h.CurrentPrice, h.Volume})
		for seq, pt := range h.PriceHistory {
			history = append(history, []any{h.Name, seq, pt.Date, pt.Price})
		}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"market", "houses"}, []string{"name", "ordinal", "current_price", "volume"}, pgx.CopyFromRows(houses)); err != nil {
		return fmt.Errorf("copy houses: %w", err)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"market", "price_history"}, []string{"house", "seq", "day", "price"}, pgx.CopyFromRows(history)); err != nil {
		return fmt.Errorf("copy price history: %w", err)
	}
	if err := copyUsers(ctx, tx, snap.Users); err != nil {
		return err
	}

	var holdings [][]any
	for _, pf := range snap.Portfolios {
		for i, h := range pf.Holdings {
			holdings = append(holdings, []any{pf.Username, h.House, i, h.Shares})
		}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"market", "holdings"}, []string{"username", "house", "ordinal", "shares"}, pgx.CopyFromRows(holdings)); err != nil {
		return fmt.Errorf("copy holdings: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *Postgres) SaveUsers(ctx context.Context, users []market.UserRecord) error {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM market.users`); err != nil {
		return err
	}
	if err := copyUsers(ctx, tx, users); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func copyUsers(ctx context.Context, tx pgx.Tx, users []market.UserRecord) error {
	rows := make([][]any, 0, len(users))
	for i, u := range users {
		rows = append(rows, []any{u.Username, i, u.House, u.PointsBalance})
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"market", "users"}, []string{"username", "ordinal", "house", "points_balance"}, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy users: %w", err)
	}
	return nil
}
