package tenant

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSQLStore_GetBySubdomain(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "slug", "db_schema", "status", "plan_id"}).
		AddRow("t-1", "north", "tenant_north", "active", "plan-1")

	mock.ExpectQuery("SELECT id, slug, db_schema, status, plan_id FROM tenants WHERE slug =").
		WithArgs("north").
		WillReturnRows(rows)

	store := NewSQLStore(db)
	rec, err := store.GetBySubdomain(context.Background(), "north")
	if err != nil {
		t.Fatalf("GetBySubdomain failed: %v", err)
	}
	if rec == nil {
		t.Fatal("expected record")
	}
	if rec.Schema.String != "tenant_north" {
		t.Errorf("expected schema tenant_north, got %s", rec.Schema.String)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSQLStore_GetBySubdomain_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT id, slug, db_schema, status, plan_id FROM tenants WHERE slug =").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "db_schema", "status", "plan_id"}))

	store := NewSQLStore(db)
	rec, err := store.GetBySubdomain(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GetBySubdomain failed: %v", err)
	}
	if rec != nil {
		t.Fatal("expected nil record for missing tenant")
	}
}

func TestSQLStore_NullableColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "slug", "db_schema", "status", "plan_id"}).
		AddRow("t-2", "south", nil, "trial", nil)

	mock.ExpectQuery("SELECT id, slug, db_schema, status, plan_id FROM tenants WHERE id =").
		WithArgs("t-2").
		WillReturnRows(rows)

	store := NewSQLStore(db)
	rec, err := store.GetByID(context.Background(), "t-2")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if rec.Schema.Valid {
		t.Error("expected null schema to scan as invalid")
	}
	if rec.PlanID.Valid {
		t.Error("expected null plan_id to scan as invalid")
	}
}
