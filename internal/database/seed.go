package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
)

// Schema statements executed at startup.  Stock deliberately carries
// no CHECK constraint and seats.reserved_by no UNIQUE index: the
// unsafe allocation paths must be able to corrupt state so the demo
// can show the race, and the safe paths must not be rescued by the
// schema.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		username      VARCHAR(64)  NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_username (username)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS items (
		id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name        VARCHAR(128) NOT NULL,
		stock       BIGINT NOT NULL,
		price_cents INT UNSIGNED NOT NULL DEFAULT 0
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS purchases (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		item_id    BIGINT UNSIGNED NOT NULL,
		quantity   BIGINT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_purchases_user (user_id),
		CONSTRAINT fk_purchases_user FOREIGN KEY (user_id) REFERENCES users (id),
		CONSTRAINT fk_purchases_item FOREIGN KEY (item_id) REFERENCES items (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS seats (
		id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		seat_label  VARCHAR(16) NOT NULL,
		row_num     INT UNSIGNED NOT NULL,
		col_num     INT UNSIGNED NOT NULL,
		x_pos       INT UNSIGNED NOT NULL,
		y_pos       INT UNSIGNED NOT NULL,
		width       INT UNSIGNED NOT NULL,
		height      INT UNSIGNED NOT NULL,
		status      ENUM('free','held') NOT NULL DEFAULT 'free',
		reserved_by BIGINT UNSIGNED NULL,
		reserved_at DATETIME NULL,
		UNIQUE KEY uq_seats_label (seat_label),
		CONSTRAINT fk_seats_user FOREIGN KEY (reserved_by) REFERENCES users (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Seed creates the schema when missing and inserts the demo data on
// first run: three stock-limited items and the 80-seat hall layout
// (8 rows, 5 blocks of 2 columns, fixed pixel boxes).  Items and
// seats are created once at bootstrap and never destroyed by the
// application.
func Seed(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	if err := seedItems(ctx, db); err != nil {
		return err
	}
	return seedSeats(ctx, db)
}

func seedItems(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		return fmt.Errorf("count items: %w", err)
	}
	if count > 0 {
		return nil
	}
	samples := []struct {
		name  string
		stock int64
		price uint32
	}{
		{"Limited Edition T-Shirt", 10, 5000},
		{"Concert Ticket", 5, 10000},
		{"Signed CD", 20, 3000},
	}
	for _, s := range samples {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO items (name, stock, price_cents) VALUES (?, ?, ?)`,
			s.name, s.stock, s.price); err != nil {
			return fmt.Errorf("seed items: %w", err)
		}
	}
	log.Printf("database: seeded %d sample items", len(samples))
	return nil
}

func seedSeats(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seats`).Scan(&count); err != nil {
		return fmt.Errorf("count seats: %w", err)
	}
	if count > 0 {
		return nil
	}

	// Hall layout: 5 blocks of 2 columns across, 8 rows down.  The
	// pixel coordinates match the seat-map background image.
	blockStartX := []uint32{8, 184, 364, 544, 744}
	rowY := []uint32{250, 313, 376, 439, 502, 565, 628, 710}
	const (
		seatWidth  = 48
		seatHeight = 58
		colGap     = 60
	)

	const q = `INSERT INTO seats
		(seat_label, row_num, col_num, x_pos, y_pos, width, height)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	seatNo := 1
	for row := 0; row < len(rowY); row++ {
		col := 1
		for _, blockX := range blockStartX {
			for b := 0; b < 2; b++ {
				label := fmt.Sprintf("%c-%d", 'A'+row, seatNo)
				x := blockX + uint32(b)*colGap
				if _, err := db.ExecContext(ctx, q,
					label, row+1, col, x, rowY[row], seatWidth, seatHeight); err != nil {
					return fmt.Errorf("seed seats: %w", err)
				}
				seatNo++
				col++
			}
		}
	}
	log.Printf("database: seeded %d seats", seatNo-1)
	return nil
}
