package store

import (
	"errors"
	"strings"
	"testing"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/crawlserv/crawlserv/errs"
)

func TestClassifyDeadlockIsTransient(t *testing.T) {
	err := classify("op", &gomysql.MySQLError{Number: mysqlErrLockDeadlock, Message: "deadlock"})
	if errs.ClassOf(err) != errs.Transient {
		t.Errorf("expected Transient, got %v", errs.ClassOf(err))
	}
}

func TestClassifyDuplicateEntryIsConflict(t *testing.T) {
	err := classify("op", &gomysql.MySQLError{Number: mysqlErrDupEntry, Message: "dup"})
	if errs.ClassOf(err) != errs.Conflict {
		t.Errorf("expected Conflict, got %v", errs.ClassOf(err))
	}
}

func TestClassifyUnknownMySQLErrorIsInternal(t *testing.T) {
	err := classify("op", &gomysql.MySQLError{Number: 9999, Message: "???"})
	if errs.ClassOf(err) != errs.Internal {
		t.Errorf("expected Internal, got %v", errs.ClassOf(err))
	}
}

func TestClassifyPlainErrorIsInternal(t *testing.T) {
	err := classify("op", errors.New("boom"))
	if errs.ClassOf(err) != errs.Internal {
		t.Errorf("expected Internal, got %v", errs.ClassOf(err))
	}
}

func TestClassifyNilIsNil(t *testing.T) {
	if classify("op", nil) != nil {
		t.Error("expected nil")
	}
}

func TestRewriteStoredURLCrossToDomainSameHost(t *testing.T) {
	rewritten, drop, err := rewriteStoredURL("example.com/a/b?x=1", "", "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if drop {
		t.Fatal("expected not dropped")
	}
	if want := "/a/b?x=1"; rewritten != want {
		t.Errorf("rewritten = %q, want %q", rewritten, want)
	}
}

func TestRewriteStoredURLCrossToDomainOtherHostDropped(t *testing.T) {
	_, drop, err := rewriteStoredURL("other.test/c", "", "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !drop {
		t.Error("expected a URL for a different host to be dropped")
	}
}

func TestRewriteStoredURLDomainToCross(t *testing.T) {
	rewritten, drop, err := rewriteStoredURL("/a/b", "example.com", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if drop {
		t.Fatal("expected not dropped")
	}
	if want := "example.com/a/b"; rewritten != want {
		t.Errorf("rewritten = %q, want %q", rewritten, want)
	}
}

func TestRewriteStoredURLNoOpWhenTypeUnchanged(t *testing.T) {
	rewritten, drop, err := rewriteStoredURL("/a/b", "example.com", "example.org")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if drop || rewritten != "/a/b" {
		t.Errorf("expected a no-op rewrite when domain-ness doesn't change, got %q, drop=%v", rewritten, drop)
	}
}

func TestCompatibleColumnType(t *testing.T) {
	cases := []struct {
		existing, wanted string
		want             bool
	}{
		{"varchar(255)", "TEXT", true},
		{"bigint", "INT", true},
		{"bigint", "TEXT", false},
		{"datetime", "DATETIME", true},
		{"blob", "BIGINT", false},
	}
	for _, c := range cases {
		if got := compatibleColumnType(c.existing, c.wanted); got != c.want {
			t.Errorf("compatibleColumnType(%q, %q) = %v, want %v", c.existing, c.wanted, got, c.want)
		}
	}
}

func TestSplitStatements(t *testing.T) {
	batch := "CREATE TABLE a (id INT);\n\nCREATE TABLE b (id INT);\n"
	stmts := splitStatements(batch)
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2: %v", len(stmts), stmts)
	}
	if stmts[0] != "CREATE TABLE a (id INT)" {
		t.Errorf("stmts[0] = %q", stmts[0])
	}
}

func TestRenderListSchemaProducesSixTables(t *testing.T) {
	stmts, err := renderListSchema("crawlserv", "ex", "news", false, "")
	if err != nil {
		t.Fatalf("renderListSchema: %v", err)
	}
	if len(stmts) != 6 {
		t.Fatalf("got %d statements, want 6", len(stmts))
	}
	for _, suffix := range []string{"", "_crawled", "_crawling", "_parsing", "_extracting", "_analyzing"} {
		found := false
		want := "crawlserv_ex_news" + suffix + " "
		for _, s := range stmts {
			if strings.Contains(s, want) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected a CREATE TABLE statement for %q", "crawlserv_ex_news"+suffix)
		}
	}
}

func TestCrc32OfIsDeterministic(t *testing.T) {
	if crc32Of("/a/b") != crc32Of("/a/b") {
		t.Error("expected crc32Of to be deterministic")
	}
	if crc32Of("/a/b") == crc32Of("/a/c") {
		t.Error("expected different URLs to hash differently (in the overwhelming common case)")
	}
}
