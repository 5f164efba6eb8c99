package tenantstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sitekit/component"
	"github.com/c360/sitekit/errors"
)

const seedDoc = `{
  "siteName": "Acme",
  "components": {
    "homepage": {"components": [
      {"id": "hero-1", "type": "hero", "componentName": "hero1", "position": 0,
       "data": {"texts": {"title": "Welcome"}}}
    ]},
    "about": [{"id": "team-1", "type": "team", "componentName": "team2"}]
  }
}`

func samplePage() []component.Instance {
	return []component.Instance{
		{ID: "hero-1", Type: "hero", ComponentName: "hero2", Position: 0,
			Data: map[string]any{"texts": map[string]any{"title": "Saved"}}},
		{ID: "cta-1", Type: "ctaValuation", ComponentName: "ctaValuation1", Position: 1,
			Data: map[string]any{}, Layout: &component.Layout{Row: 1, Span: 2}},
	}
}

// storeContract runs the behavior every backend shares.
func storeContract(t *testing.T, s interface {
	Store
	Seeder
}) {
	ctx := context.Background()

	_, err := s.Load(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, s.Put(ctx, "acme", []byte(seedDoc)))
	blob, err := s.Load(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, blob.Pages["homepage"], 1)

	require.NoError(t, s.SavePage(ctx, "acme", "homepage", samplePage()))
	blob, err = s.Load(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, blob.Pages["homepage"], 2)
	assert.Equal(t, "hero2", blob.Pages["homepage"][0].ComponentName)
	assert.Equal(t, "Saved", blob.Pages["homepage"][0].Data["texts"].(map[string]any)["title"])
	assert.Len(t, blob.Pages["about"], 1, "other pages untouched")
	assert.Contains(t, blob.Extra, "siteName")

	require.NoError(t, s.SavePage(ctx, "acme", "homepage", samplePage()), "saves are idempotent")

	require.NoError(t, s.SavePage(ctx, "newco", "homepage", samplePage()))
	ids, err := s.Tenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "newco"}, ids)

	err = s.SavePage(ctx, "acme", "homepage", []component.Instance{{ID: "x"}})
	assert.True(t, errors.IsInvalid(err))
	blob, err = s.Load(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, blob.Pages["homepage"], 2, "failed save leaves the document untouched")

	assert.Error(t, s.Put(ctx, "acme", []byte("{not json")))
	assert.Error(t, s.Put(ctx, "bad id!", []byte(seedDoc)))
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestSQLStore_SQLite(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "tenants.db") + "?_pragma=busy_timeout(5000)"
	s, err := OpenSQLStore(context.Background(), "sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Ping(context.Background()))
	storeContract(t, s)
}

func TestSQLStore_InsertConflicts(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "tenants.db") + "?_pragma=busy_timeout(5000)"
	s, err := OpenSQLStore(ctx, "sqlite", dsn)
	require.NoError(t, err)

	require.NoError(t, s.insert(ctx, "acme", []byte(seedDoc)))
	err = s.insert(ctx, "acme", []byte(seedDoc))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrSaveConflict)

	require.NoError(t, s.Close())
	err = s.insert(ctx, "beta", []byte(seedDoc))
	require.Error(t, err)
	assert.NotErrorIs(t, err, errors.ErrSaveConflict)
	assert.True(t, errors.IsTransient(err))
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"postgres unique", &pq.Error{Code: "23505"}, true},
		{"postgres other", &pq.Error{Code: "08006"}, false},
		{"mysql duplicate", fmt.Errorf("exec: %w", &mysql.MySQLError{Number: 1062}), true},
		{"mysql other", &mysql.MySQLError{Number: 2006}, false},
		{"plain", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}

func TestOpenSQLStore_UnknownDriver(t *testing.T) {
	_, err := OpenSQLStore(context.Background(), "oracle", "x")
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestSQLStore_Placeholders(t *testing.T) {
	pg := &SQLStore{dialect: dialects["postgres"]}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.query("SELECT a FROM t WHERE x = ? AND y = ?"))

	my := &SQLStore{dialect: dialects["mysql"]}
	assert.Equal(t, "WHERE x = ?", my.query("WHERE x = ?"))
}

func TestMemoryStore_LoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"acme": `+seedDoc+`, "beta": {}}`), 0o600))

	s := NewMemoryStore()
	require.NoError(t, s.LoadSeedFile(path))
	ids, err := s.Tenants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "beta"}, ids)

	raw, err := s.Raw("beta")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))
	_, err = s.Raw("nobody")
	assert.True(t, errors.IsNotFound(err))

	assert.Error(t, s.LoadSeedFile(filepath.Join(t.TempDir(), "missing.json")))
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		tenant  string
		slug    string
		list    []component.Instance
		wantErr bool
	}{
		{"valid", "acme", "homepage", samplePage(), false},
		{"nested slug", "acme", "blog/post-1", nil, false},
		{"empty tenant", "", "homepage", nil, true},
		{"tenant with dot", "a.b", "homepage", nil, true},
		{"empty slug", "acme", "", nil, true},
		{"duplicate ids", "acme", "homepage", []component.Instance{
			{ID: "a", Type: "hero"}, {ID: "a", Type: "hero"}}, true},
		{"bad span", "acme", "homepage", []component.Instance{
			{ID: "a", Type: "hero", Layout: &component.Layout{Span: 3}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSave(tt.tenant, tt.slug, tt.list)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInvalid(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}
