package ledger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
)

func TestMemoryRecordAndList(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)
	if err := l.Record(ctx, Entry{Model: "a", File: "FP32/a.xml", VerifiedAt: old}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Record(ctx, Entry{Model: "a", File: "FP32/a.bin"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Record(ctx, Entry{Model: "b", File: "FP16/b.xml"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := l.List(ctx, "a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].File != "FP32/a.bin" {
		t.Fatalf("expected newest first: %+v", got)
	}
	if got[0].ID == "" || got[0].ID == got[1].ID {
		t.Fatalf("ids not assigned: %+v", got)
	}
	all, _ := l.List(ctx, "")
	if len(all) != 3 {
		t.Fatalf("all=%d", len(all))
	}
}

func TestOpenWithoutDSNIsMemory(t *testing.T) {
	l, err := Open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := l.(*Memory); !ok {
		t.Fatalf("expected memory ledger, got %T", l)
	}
}

func TestNewSQLRejectsBadTable(t *testing.T) {
	if _, err := NewSQL(SQLConfig{DriverName: "mysql", TableName: "x; DROP TABLE y"}); err == nil {
		t.Fatalf("expected table name error")
	}
}

// TestSQLRoundTrip runs against a live MySQL when MODELZOO_TEST_MYSQL_DSN is set.
func TestSQLRoundTrip(t *testing.T) {
	dsn := os.Getenv("MODELZOO_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("MODELZOO_TEST_MYSQL_DSN not set")
	}
	l, err := NewSQL(SQLConfig{DriverName: "mysql", ConnInfo: dsn, TableName: "artifact_ledger_test"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer l.Close()
	ctx := context.Background()
	if err := l.Record(ctx, Entry{Model: "m", Precision: "FP16", File: "FP16/m.bin", SHA256: "ab", Size: 3, Source: "https://x"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := l.List(ctx, "m")
	if err != nil || len(got) == 0 {
		t.Fatalf("list: %v %+v", err, got)
	}
	if got[0].VerifiedAt.IsZero() {
		t.Fatalf("verified_at lost: %+v", got[0])
	}
}

func TestMySQLDSNParsesTime(t *testing.T) {
	for _, in := range []string{
		"zoo:secret@tcp(127.0.0.1:3306)/modelzoo",
		"zoo:secret@tcp(127.0.0.1:3306)/modelzoo?parseTime=false",
		"zoo:secret@tcp(127.0.0.1:3306)/modelzoo?parseTime=true&loc=Local",
	} {
		dsn, err := mysqlDSN(in)
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		c, err := mysql.ParseDSN(dsn)
		if err != nil {
			t.Fatalf("reparse %s: %v", dsn, err)
		}
		if !c.ParseTime || c.Loc != time.UTC {
			t.Fatalf("%s -> %s: parseTime=%v loc=%v", in, dsn, c.ParseTime, c.Loc)
		}
		if c.DBName != "modelzoo" || c.User != "zoo" {
			t.Fatalf("%s: lost fields: %+v", in, c)
		}
	}
	if _, err := mysqlDSN("not a dsn"); err == nil {
		t.Fatalf("expected dsn error")
	}
}
