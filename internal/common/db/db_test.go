package db

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(sql.ErrNoRows) {
		t.Error("bare sql.ErrNoRows should be detected")
	}
	if !IsNoRows(fmt.Errorf("scan failed: %w", sql.ErrNoRows)) {
		t.Error("wrapped sql.ErrNoRows should be detected")
	}
	if IsNoRows(errors.New("connection reset")) {
		t.Error("unrelated error should not be detected")
	}
	if IsNoRows(nil) {
		t.Error("nil should not be detected")
	}
}

func TestUniqueViolation(t *testing.T) {
	dup := &mysql.MySQLError{
		Number:  1062,
		Message: "Duplicate entry 's1' for key 'submissions.PRIMARY'",
	}
	key, ok := UniqueViolation(fmt.Errorf("insert submission failed: %w", dup))
	if !ok {
		t.Fatal("1062 should be detected through wrapping")
	}
	if key != "submissions.PRIMARY" {
		t.Errorf("key = %q, want submissions.PRIMARY", key)
	}

	if _, ok := UniqueViolation(&mysql.MySQLError{Number: 1452, Message: "foreign key"}); ok {
		t.Error("non-1062 mysql error should not be detected")
	}
	if _, ok := UniqueViolation(errors.New("plain error")); ok {
		t.Error("non-mysql error should not be detected")
	}
}

func TestDuplicateKeyName(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{message: "Duplicate entry 's1' for key 'PRIMARY'", want: "PRIMARY"},
		{message: "Duplicate entry 'x' for key `idx_user`", want: "idx_user"},
		{message: "no marker here", want: ""},
	}
	for _, tt := range tests {
		if got := duplicateKeyName(tt.message); got != tt.want {
			t.Errorf("duplicateKeyName(%q) = %q, want %q", tt.message, got, tt.want)
		}
	}
}
