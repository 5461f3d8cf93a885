package model

import "time"

// User represents an account as stored in the `users` table.  The
// allocators only ever see the numeric ID; usernames are resolved when
// building seat snapshots.
//
// Fields:
//  ID           – primary key identifier.
//  Username     – unique login name.
//  PasswordHash – bcrypt hashed password.
//  CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	PasswordHash string    // users.password_hash
	CreatedAt    time.Time // users.created_at
}
