package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/icrowley/fake"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"syreclabs.com/go/faker"
)

const schemaFile = "testdata/shop.yaml"

func run(t *testing.T, environ []string, args ...string) (string, string, error) {
	t.Helper()
	var stdOut, stdErr bytes.Buffer
	cmd := newRootCommand(newGlobalState(context.Background(), &stdOut, &stdErr, environ))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdOut.String(), stdErr.String(), err
}

func TestTranslate(t *testing.T) {
	out, _, err := run(t, nil, "-s", schemaFile, "-p", "sqlite",
		"translate", "Review", "r.Rating >= min", "--param", "min=4", "--order-by", "Rating", "--take", "3")
	require.NoError(t, err)
	assert.Contains(t, out, `SELECT "r"."Id", "r"."CustomerId", "r"."Rating" FROM "Reviews" AS "r" `+
		`WHERE "r"."Rating" >= ? ORDER BY "r"."Rating" LIMIT ?`)
	assert.True(t, strings.HasPrefix(out, "-- "))
}

func TestTranslateReadsEnvironment(t *testing.T) {
	environ := []string{"ASCETIC_ORM_SCHEMA=" + schemaFile, "ASCETIC_ORM_PROVIDER=postgresql"}
	out, _, err := run(t, environ, "translate", "Customer", "--include", "Orders", "--tracking", "none")
	require.NoError(t, err)
	assert.Contains(t, out, `LEFT JOIN "Orders" AS "o" ON "o"."CustomerId" = "c"."Id"`)
}

func TestTranslateErrors(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"no schema", []string{"translate", "Review"}},
		{"unknown entity", []string{"-s", schemaFile, "translate", "Invoice"}},
		{"syntax", []string{"-s", schemaFile, "translate", "Review", "r.Rating >"}},
		{"tracking", []string{"-s", schemaFile, "translate", "Review", "--tracking", "some"}},
		{"as of", []string{"-s", schemaFile, "translate", "Review", "--as-of", "yesterday"}},
		{"provider", []string{"-s", schemaFile, "-p", "oracle", "translate", "Review"}},
		{"arguments", []string{"-s", schemaFile, "translate"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, _, err := run(t, nil, c.args...)
			assert.Error(t, err)
		})
	}
}

func TestModel(t *testing.T) {
	out, _, err := run(t, nil, "-s", schemaFile, "model")
	require.NoError(t, err)
	assert.Contains(t, out, "Customer -> Customers")
	assert.Contains(t, out, "  Orders -> []Order\n")
	assert.Contains(t, out, "Address owned by Customer.Address")
	assert.Contains(t, out, "\nrelationships:\n")
}

func TestDiff(t *testing.T) {
	out, _, err := run(t, nil, "-s", schemaFile, "-p", "sqlite", "diff", "Review", "--take", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "  SELECT \"r\".\"Id\"")
	assert.Contains(t, out, "- LIMIT ?\n")
	assert.Contains(t, out, "+ LIMIT $1\n")

	out, _, err = run(t, nil, "-s", schemaFile, "-p", "sqlite", "diff", "Review", "--against", "sqlite")
	require.NoError(t, err)
	assert.NotContains(t, out, "+ ")
	assert.NotContains(t, out, "- ")
}

func seedShop(t *testing.T, customers int) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "shop.db")
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`
CREATE TABLE Customers (Id INTEGER PRIMARY KEY, Name TEXT NOT NULL, Email TEXT, Address_Street TEXT, Address_City TEXT);
CREATE TABLE Orders (Id INTEGER PRIMARY KEY, CustomerId INTEGER NOT NULL, Total REAL NOT NULL, Note TEXT,
	PlacedAt TEXT NOT NULL, Lines TEXT NOT NULL);
CREATE TABLE Reviews (Id INTEGER PRIMARY KEY, CustomerId INTEGER NOT NULL, Rating INTEGER NOT NULL);`)
	require.NoError(t, err)

	for i := 1; i <= customers; i++ {
		_, err = db.Exec(`INSERT INTO Customers VALUES (?, ?, ?, ?, ?)`,
			i, fake.FirstName()+" "+fake.LastName(), faker.Internet().Email(), fake.Street(), faker.Address().City())
		require.NoError(t, err)
		lines, err := json.Marshal([]map[string]any{{"Sku": fake.ProductName(), "Quantity": i}})
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO Orders VALUES (?, ?, ?, NULL, '2024-05-01 00:00:00', ?)`,
			i*10, i, float64(faker.Number().NumberInt(3)), string(lines))
		require.NoError(t, err)
	}
	return dsn
}

func TestExecSqlite(t *testing.T) {
	dsn := seedShop(t, 4)
	out, _, err := run(t, nil, "-s", schemaFile, "-p", "sqlite", "--dsn", dsn,
		"exec", "Customer", "c.Id > min", "--param", "min=1", "--include", "Orders", "--order-by", "Id")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	first := gjson.Parse(lines[0])
	assert.Equal(t, int64(2), first.Get("Id").Int())
	assert.NotEmpty(t, first.Get("Name").String())
	assert.Equal(t, int64(20), first.Get("Orders.0.Id").Int())
	assert.Len(t, first.Get("Orders.0.Lines").Array(), 1)
}

func TestExecLogsQueries(t *testing.T) {
	dsn := seedShop(t, 1)
	_, stdErr, err := run(t, nil, "-s", schemaFile, "-p", "sqlite", "--dsn", dsn, "--log-level", "debug",
		"exec", "Review")
	require.NoError(t, err)
	assert.Contains(t, stdErr, `FROM \"Reviews\" AS \"r\"`)
	assert.Contains(t, stdErr, "query executed")
}

func TestExecUnsupportedProvider(t *testing.T) {
	_, _, err := run(t, nil, "-s", schemaFile, "-p", "sqlserver", "exec", "Review")
	assert.ErrorIs(t, err, errExecUnsupported)
}

func TestTranslateTemporal(t *testing.T) {
	out, _, err := run(t, nil, "-s", schemaFile, "-p", "sqlserver",
		"translate", "Customer", "--as-of", "2024-05-01T00:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "FOR SYSTEM_TIME AS OF")

	_, _, err = run(t, nil, "-s", schemaFile, "-p", "sqlite",
		"translate", "Customer", "--as-of", "2024-05-01T00:00:00Z")
	assert.Error(t, err)
}
