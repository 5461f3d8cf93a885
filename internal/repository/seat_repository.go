package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/ticket-rush/internal/model"
)

// SeatRepo provides access to the seats table.  It implements
// SeatStore.  Seat rows are created once at seed time; only the
// status/holder columns ever change and only through SeatTx.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo returns a new SeatRepo bound to the given database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

const seatViewColumns = `s.id, s.seat_label, s.row_num, s.col_num, s.x_pos, s.y_pos,
	       s.width, s.height, s.status, s.reserved_by, s.reserved_at, u.username`

// Seats returns the full seat map with holder usernames resolved,
// ordered by row and column.  The result is a complete snapshot; hub
// subscribers never have to diff partial updates.
func (r *SeatRepo) Seats(ctx context.Context) ([]model.SeatView, error) {
	const q = `SELECT ` + seatViewColumns + `
	           FROM seats s
	           LEFT JOIN users u ON u.id = s.reserved_by
	           ORDER BY s.row_num, s.col_num`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make([]model.SeatView, 0)
	for rows.Next() {
		v, err := scanSeatView(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// SeatHeldBy returns the seat currently held by the user, or nil when
// the user holds none.
func (r *SeatRepo) SeatHeldBy(ctx context.Context, userID uint64) (*model.SeatView, error) {
	const q = `SELECT ` + seatViewColumns + `
	           FROM seats s
	           LEFT JOIN users u ON u.id = s.reserved_by
	           WHERE s.reserved_by = ?
	           LIMIT 1`
	row := r.db.QueryRowContext(ctx, q, userID)
	v, err := scanSeatView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSeatView(s scanner) (model.SeatView, error) {
	var v model.SeatView
	var reservedBy sql.NullInt64
	var reservedAt sql.NullTime
	var holder sql.NullString
	err := s.Scan(&v.ID, &v.Label, &v.RowNum, &v.ColNum, &v.XPos, &v.YPos,
		&v.Width, &v.Height, &v.Status, &reservedBy, &reservedAt, &holder)
	if err != nil {
		return model.SeatView{}, err
	}
	if reservedBy.Valid {
		id := uint64(reservedBy.Int64)
		v.ReservedBy = &id
	}
	if reservedAt.Valid {
		iso := reservedAt.Time.UTC().Format(time.RFC3339)
		v.ReservedAt = &iso
	}
	if holder.Valid {
		name := holder.String
		v.HolderName = &name
	}
	return v, nil
}

// BeginSeats opens a transaction for a single reserve or release.
func (r *SeatRepo) BeginSeats(ctx context.Context) (SeatTx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &seatTx{tx: tx}, nil
}

// seatTx implements SeatTx on top of *sql.Tx.
type seatTx struct {
	tx *sql.Tx
}

func (t *seatTx) SeatState(ctx context.Context, seatID uint64) (model.SeatState, error) {
	return t.state(ctx, seatID, `SELECT status, reserved_by FROM seats WHERE id = ?`)
}

// SeatStateForUpdate reads the seat row under an exclusive lock held
// until the transaction ends.  Concurrent safe reserves for the same
// seat queue here; exactly one observes it free.
func (t *seatTx) SeatStateForUpdate(ctx context.Context, seatID uint64) (model.SeatState, error) {
	return t.state(ctx, seatID, `SELECT status, reserved_by FROM seats WHERE id = ? FOR UPDATE`)
}

func (t *seatTx) state(ctx context.Context, seatID uint64, q string) (model.SeatState, error) {
	var st model.SeatState
	var reservedBy sql.NullInt64
	err := t.tx.QueryRowContext(ctx, q, seatID).Scan(&st.Status, &reservedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SeatState{}, ErrNotFound
	}
	if err != nil {
		return model.SeatState{}, err
	}
	if reservedBy.Valid {
		id := uint64(reservedBy.Int64)
		st.ReservedBy = &id
	}
	return st, nil
}

func (t *seatTx) CountHeldBy(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seats WHERE reserved_by = ?`, userID).Scan(&n)
	return n, err
}

func (t *seatTx) Reserve(ctx context.Context, seatID, userID uint64, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE seats SET status = 'held', reserved_by = ?, reserved_at = ? WHERE id = ?`,
		userID, at.UTC().Format("2006-01-02 15:04:05"), seatID)
	return err
}

// ReleaseOwned frees the seat only when the caller is its current
// holder.  The ownership check and the write are one statement, so a
// stale double release simply reports no rows changed.
func (t *seatTx) ReleaseOwned(ctx context.Context, seatID, userID uint64) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE seats SET status = 'free', reserved_by = NULL, reserved_at = NULL
		 WHERE id = ? AND reserved_by = ?`,
		seatID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (t *seatTx) Commit() error   { return t.tx.Commit() }
func (t *seatTx) Rollback() error { return t.tx.Rollback() }
