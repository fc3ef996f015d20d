package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSubscriberRepositoryListConfirmed(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT email, code\\s+FROM subscribers\\s+WHERE confirmed = 1").
		WillReturnRows(sqlmock.NewRows([]string{"email", "code"}).
			AddRow("a@b.com", "c1").
			AddRow("c@d.com", "c2"))

	subs, err := NewSubscriberRepository(db).ListConfirmed(context.Background())
	if err != nil {
		t.Fatalf("ListConfirmed: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 subscribers, got %d", len(subs))
	}
	if subs[0].Email != "a@b.com" || subs[0].Code != "c1" || !subs[0].Confirmed {
		t.Fatalf("unexpected subscriber: %+v", subs[0])
	}
	if subs[1].Email != "c@d.com" || subs[1].Code != "c2" {
		t.Fatalf("unexpected subscriber: %+v", subs[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSubscriberRepositoryListConfirmedEmpty(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM subscribers").
		WillReturnRows(sqlmock.NewRows([]string{"email", "code"}))

	subs, err := NewSubscriberRepository(db).ListConfirmed(context.Background())
	if err != nil {
		t.Fatalf("ListConfirmed: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("expected no subscribers, got %d", len(subs))
	}
}

func TestSubscriberRepositoryListConfirmedQueryError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	dbErr := errors.New("connection refused")
	mock.ExpectQuery("FROM subscribers").WillReturnError(dbErr)

	if _, err := NewSubscriberRepository(db).ListConfirmed(context.Background()); !errors.Is(err, dbErr) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
