// Package models holds the data structures shared between repositories and
// services on the server side.
package models

import "time"

// MemberAccount is the directory-resident view of a member: the posixAccount
// entry under the member namespace. PasswordHash carries the scheme tag
// (e.g. "{crypt}$6$..."), never a plaintext password.
type MemberAccount struct {
	Username      string
	UIDNumber     int
	GIDNumber     int
	HomeDirectory string
	LoginShell    string
	PasswordHash  string
	Mail          string
}

// MemberRecord is the relational row with the profile the member fills in at
// signup. Username doubles as the foreign key to the directory entry.
type MemberRecord struct {
	ID             int64
	Username       string
	Name           string
	Email          string
	StudentID      string
	Course         string
	GraduationYear string
	UIDNumber      int
	GIDNumber      int
	PasswordHash   string
	CreatedAt      time.Time
}
