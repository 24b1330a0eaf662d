package workspace

import (
	"context"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestListReturnsIdsInEnumerationOrder(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer conn.Close()
	mock.ExpectQuery("SELECT id FROM staminads_system.workspaces ORDER BY id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).
			AddRow("acme").AddRow("globex").AddRow("ws-1"))

	e := &Enumerator{DB: conn, Database: "staminads_system", Prefix: "staminads"}
	ids, err := e.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"acme", "globex", "ws-1"}) {
		t.Fatalf("unexpected ids: %#v", ids)
	}
}

func TestListEmpty(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer conn.Close()
	mock.ExpectQuery("SELECT id FROM").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	e := &Enumerator{DB: conn, Database: "staminads_system", Prefix: "staminads"}
	ids, err := e.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no ids, got %#v", ids)
	}
}

func TestDatabaseName(t *testing.T) {
	e := &Enumerator{Prefix: "staminads"}
	cases := map[string]string{
		"ws-1":           "staminads_ws_1",
		"ws-with-dashes": "staminads_ws_with_dashes",
		"Acme.Corp":      "staminads_acme_corp",
		"WS 2":           "staminads_ws_2",
		"already_fine9":  "staminads_already_fine9",
		"über":           "staminads__ber",
	}
	for id, want := range cases {
		if got := e.DatabaseName(id); got != want {
			t.Fatalf("DatabaseName(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestDatabaseNameIsStable(t *testing.T) {
	e := &Enumerator{Prefix: "staminads"}
	if e.DatabaseName("ws-1") != e.DatabaseName("ws-1") {
		t.Fatal("transform must be deterministic")
	}
}
