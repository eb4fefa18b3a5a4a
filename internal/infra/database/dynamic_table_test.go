package database

import (
	"strings"
	"testing"
	"time"

	"data_collector/internal/domain/schema"
	"data_collector/internal/domain/teacher"
)

func testTeacher() *teacher.Teacher {
	return &teacher.Teacher{ID: 3, Name: "张三", Department: "物理系", Email: "zhang@uni.edu"}
}

func TestCreateTableSQL(t *testing.T) {
	columns, _ := schema.BuildColumnMapping([]string{"姓名", "经费(万元)"})
	got := createTableSQL(7, columns)

	for _, want := range []string{
		`CREATE TABLE IF NOT EXISTS "task_data_7"`,
		"id BIGSERIAL PRIMARY KEY",
		"teacher_id BIGINT",
		"teacher_name TEXT",
		"department TEXT",
		"email TEXT",
		"reply_time TIMESTAMPTZ",
		`"姓名" TEXT`,
		`"经费_万元_" TEXT`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("createTableSQL() missing %q in %q", want, got)
		}
	}
}

func TestUpsertRowSQLDeleteThenInsert(t *testing.T) {
	tch := testTeacher()
	_, mapping := schema.BuildColumnMapping([]string{"姓名", "经费(万元)"})
	replyTime := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	del, ins := upsertRowSQL(7, tch, replyTime, map[string]string{"姓名": "张三", "经费(万元)": "12.5"}, mapping)

	if want := `DELETE FROM "task_data_7" WHERE teacher_id = $1`; del.SQL != want {
		t.Errorf("delete SQL = %q, want %q", del.SQL, want)
	}
	if len(del.Args) != 1 || del.Args[0] != tch.ID {
		t.Errorf("delete args = %v, want [%d]", del.Args, tch.ID)
	}

	if !strings.HasPrefix(ins.SQL, `INSERT INTO "task_data_7" (teacher_id, teacher_name, department, email, reply_time, `) {
		t.Errorf("insert SQL has wrong prefix: %q", ins.SQL)
	}
	if got, want := len(ins.Args), 7; got != want {
		t.Fatalf("insert args: got %d, want %d", got, want)
	}
	if got := strings.Count(ins.SQL, "$"); got != len(ins.Args) {
		t.Errorf("insert SQL has %d placeholders for %d args", got, len(ins.Args))
	}

	// A second upsert for the same teacher clears the same row and carries
	// the new values, so the table keeps exactly one row per teacher.
	del2, ins2 := upsertRowSQL(7, tch, replyTime.Add(time.Hour), map[string]string{"姓名": "张三", "经费(万元)": "20"}, mapping)
	if del2.SQL != del.SQL || del2.Args[0] != del.Args[0] {
		t.Errorf("second upsert deletes a different row: %q %v", del2.SQL, del2.Args)
	}
	if ins2.SQL != ins.SQL {
		t.Errorf("insert shape changed between upserts: %q vs %q", ins2.SQL, ins.SQL)
	}
	updated := false
	for _, a := range ins2.Args {
		if a == "20" {
			updated = true
		}
	}
	if !updated {
		t.Errorf("second insert args %v do not carry the updated value", ins2.Args)
	}
}

func TestUpsertRowSQLDropsUnmappedKeys(t *testing.T) {
	tch := testTeacher()
	_, mapping := schema.BuildColumnMapping([]string{"姓名"})

	_, ins := upsertRowSQL(7, tch, time.Now(), map[string]string{"姓名": "张三", "备注": "stray"}, mapping)

	if strings.Contains(ins.SQL, "备注") {
		t.Errorf("insert SQL carries an unmapped column: %q", ins.SQL)
	}
	if got, want := len(ins.Args), 6; got != want {
		t.Errorf("insert args: got %d, want %d", got, want)
	}
	for _, a := range ins.Args {
		if a == "stray" {
			t.Errorf("insert args carry an unmapped value: %v", ins.Args)
		}
	}
}

func TestUpsertRowSQLStableColumnOrder(t *testing.T) {
	tch := testTeacher()
	_, mapping := schema.BuildColumnMapping([]string{"经费(万元)", "姓名"})
	values := map[string]string{"姓名": "张三", "经费(万元)": "12.5"}
	replyTime := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	_, first := upsertRowSQL(7, tch, replyTime, values, mapping)
	for i := 0; i < 20; i++ {
		_, again := upsertRowSQL(7, tch, replyTime, values, mapping)
		if again.SQL != first.SQL {
			t.Fatalf("column order is not stable: %q vs %q", again.SQL, first.SQL)
		}
	}
}
