package infra

import "testing"

func TestSplitSQL_DropsCommentsAndBlanks(t *testing.T) {
	src := `-- header
CREATE TABLE a (id INT);
  -- indented comment
CREATE INDEX i ON a (id);

`
	stmts := splitSQL(stripSQLComments(src))
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[0] != "CREATE TABLE a (id INT)" {
		t.Errorf("unexpected first statement %q", stmts[0])
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	content, err := migrationFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	stmts := splitSQL(stripSQLComments(string(content)))
	if len(stmts) != 4 {
		t.Errorf("expected 4 statements in 0001_init.sql, got %d", len(stmts))
	}
}
