package draft

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"github.com/faciam-dev/formportal/pkg/formschema"
	"github.com/faciam-dev/formportal/pkg/util"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	if _, ok, err := Load(ctx, s, "health"); err != nil || ok {
		t.Fatalf("load empty: ok=%v err=%v", ok, err)
	}
	want := formschema.Values{"a": "x", "b": 2.0}
	if err := Save(ctx, s, "health", want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := Load(ctx, s, "health")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("draft diff\n%s", diff)
	}
	if err := Remove(ctx, s, "health"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := Load(ctx, s, "health"); ok {
		t.Fatalf("draft still present after remove")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s := &RedisStore{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()}), Prefix: "portal:", TTL: time.Hour}
	exerciseStore(t, s)

	if err := s.Set(context.Background(), Key("car"), []byte(`{}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("portal:form_draft_car") {
		t.Fatalf("key not prefixed")
	}
	if ttl := mr.TTL("portal:form_draft_car"); ttl != time.Hour {
		t.Fatalf("ttl = %v", ttl)
	}
}

func TestNamespaceIsolatesClients(t *testing.T) {
	base := NewMemoryStore()
	a, b := Namespace(base, "client-a"), Namespace(base, "client-b")
	ctx := context.Background()
	if err := Save(ctx, a, "life", formschema.Values{"x": "1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok, _ := Load(ctx, b, "life"); ok {
		t.Fatalf("namespace leak")
	}
	if _, ok, _ := base.Get(ctx, "client-a:form_draft_life"); !ok {
		t.Fatalf("namespaced key missing")
	}
	if Namespace(base, " ") != Store(base) {
		t.Fatalf("empty namespace should return base store")
	}
}

func TestLoadCorruptDraft(t *testing.T) {
	s := NewMemoryStore()
	_ = s.Set(context.Background(), Key("home"), []byte("{not json"))
	if _, _, err := Load(context.Background(), s, "home"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v, want ErrCorrupt", err)
	}
}

func TestSQLStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	s := &SQLStore{DB: db, TablePrefix: "portal_"}
	ctx := context.Background()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS portal_drafts").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mock.ExpectQuery("SELECT payload FROM portal_drafts WHERE draft_key = \\?").
		WithArgs("form_draft_car").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))
	if _, ok, err := s.Get(ctx, "form_draft_car"); err != nil || ok {
		t.Fatalf("get missing: ok=%v err=%v", ok, err)
	}

	mock.ExpectExec("INSERT INTO portal_drafts").
		WithArgs("form_draft_car", []byte(`{"a":"x"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	if err := s.Set(ctx, "form_draft_car", []byte(`{"a":"x"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}

	mock.ExpectQuery("SELECT payload FROM portal_drafts").
		WithArgs("form_draft_car").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte(`{"a":"x"}`)))
	b, ok, err := s.Get(ctx, "form_draft_car")
	if err != nil || !ok || string(b) != `{"a":"x"}` {
		t.Fatalf("get: %q ok=%v err=%v", b, ok, err)
	}

	mock.ExpectExec("DELETE FROM portal_drafts").WithArgs("form_draft_car").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := s.Delete(ctx, "form_draft_car"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLStorePurge(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	s := &SQLStore{DB: db, TablePrefix: "portal_"}
	cutoff := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM portal_drafts WHERE updated_at < \\?").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := s.Purge(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 3 {
		t.Fatalf("purged %d, want 3", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSQLStoreDialects(t *testing.T) {
	tests := []struct {
		driver  string
		migrate string
		get     string
		upsert  string
		del     string
	}{
		{
			driver:  util.BackendMySQL,
			migrate: `draft_key VARCHAR\(255\) PRIMARY KEY,\s+payload LONGBLOB`,
			get:     `WHERE draft_key = \?`,
			upsert:  `VALUES \(\?, \?, \?\)\s+ON DUPLICATE KEY UPDATE payload = VALUES\(payload\)`,
			del:     `DELETE FROM portal_drafts WHERE draft_key = \?`,
		},
		{
			driver:  util.BackendPostgres,
			migrate: `draft_key TEXT PRIMARY KEY,\s+payload BYTEA NOT NULL,\s+updated_at TIMESTAMPTZ`,
			get:     `WHERE draft_key = \$1`,
			upsert:  `VALUES \(\$1, \$2, \$3\)\s+ON CONFLICT\(draft_key\) DO UPDATE`,
			del:     `DELETE FROM portal_drafts WHERE draft_key = \$1`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("sqlmock: %v", err)
			}
			defer db.Close()
			s := &SQLStore{DB: db, Driver: tt.driver, TablePrefix: "portal_"}
			ctx := context.Background()

			mock.ExpectExec(tt.migrate).WillReturnResult(sqlmock.NewResult(0, 0))
			mock.ExpectExec(tt.upsert).
				WithArgs("form_draft_home", []byte(`{"a":1}`), sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))
			mock.ExpectQuery(tt.get).
				WithArgs("form_draft_home").
				WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte(`{"a":1}`)))
			mock.ExpectExec(tt.del).WithArgs("form_draft_home").WillReturnResult(sqlmock.NewResult(0, 1))

			if err := s.Migrate(ctx); err != nil {
				t.Fatalf("migrate: %v", err)
			}
			if err := s.Set(ctx, "form_draft_home", []byte(`{"a":1}`)); err != nil {
				t.Fatalf("set: %v", err)
			}
			if b, ok, err := s.Get(ctx, "form_draft_home"); err != nil || !ok || string(b) != `{"a":1}` {
				t.Fatalf("get: %q ok=%v err=%v", b, ok, err)
			}
			if err := s.Delete(ctx, "form_draft_home"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("expectations: %v", err)
			}
		})
	}
}
