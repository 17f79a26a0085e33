package sections

import (
	"reflect"
	"testing"
)

func TestMaterialize(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		want   [][]string
		wantOK bool
	}{
		{
			name:   "markdown table",
			body:   "| a | b |\n|---|---|\n| 1 | 2 |",
			want:   [][]string{{"a", "b"}, {"1", "2"}},
			wantOK: true,
		},
		{
			name:   "no outer pipes",
			body:   "name | qty\n-----+----\nbolt | 4",
			want:   [][]string{{"name", "qty"}, {"bolt", "4"}},
			wantOK: true,
		},
		{
			name:   "inner empty cell kept",
			body:   "| a |  | c |",
			want:   [][]string{{"a", "", "c"}},
			wantOK: true,
		},
		{
			name:   "blank lines and indentation",
			body:   "\n   | x | y |   \n\n| 1 | 2 |\n",
			want:   [][]string{{"x", "y"}, {"1", "2"}},
			wantOK: true,
		},
		{
			name:   "no pipes",
			body:   "just some words\nand more words",
			wantOK: false,
		},
		{
			name:   "separators only",
			body:   "|---|---|\n+---+---+",
			wantOK: false,
		},
		{
			name:   "empty",
			body:   "",
			wantOK: false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Materialize(tc.body)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v (rows %v)", ok, tc.wantOK, got.Rows)
			}
			if !reflect.DeepEqual(got.Rows, tc.want) {
				t.Errorf("rows = %q, want %q", got.Rows, tc.want)
			}
		})
	}
}

func TestTable_Columns(t *testing.T) {
	tbl := Table{Rows: [][]string{{"a"}, {"a", "b", "c"}, {"a", "b"}}}
	if tbl.Columns() != 3 {
		t.Errorf("Columns() = %d, want 3", tbl.Columns())
	}
}

func TestLines(t *testing.T) {
	got := Lines("  one \n\n two\n")
	want := []string{"one", "two"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Lines() = %q, want %q", got, want)
	}
}
