package filestore

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/danekpavel/precipitation/internal/models"
)

func fl(v float64) *float64 { return &v }

func sampleTable() *models.WideDayTable {
	var hoursA, hoursB [models.HoursPerDay]*float64
	hoursA[0] = fl(2.0)
	hoursA[23] = fl(0.5)
	hoursB[11] = fl(0.0)

	return &models.WideDayTable{Rows: []models.WideRow{
		{Station: "Brno", Hours: hoursA},
		{Station: "Cheb, Skalka", Hours: hoursB},
	}}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	store := New(t.TempDir())
	table := sampleTable()

	if err := store.Write(table, "2024-03-05"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := store.Read("2024-03-05")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if len(got.Rows) != len(table.Rows) {
		t.Fatalf("Read() returned %d rows, want %d", len(got.Rows), len(table.Rows))
	}
	for i, row := range got.Rows {
		want := table.Rows[i]
		if row.Station != want.Station {
			t.Errorf("row %d Station = %q, want %q", i, row.Station, want.Station)
		}
		for h := 0; h < models.HoursPerDay; h++ {
			switch {
			case row.Hours[h] == nil && want.Hours[h] == nil:
			case row.Hours[h] == nil || want.Hours[h] == nil:
				t.Errorf("row %d hour %d = %v, want %v", i, h+1, row.Hours[h], want.Hours[h])
			case *row.Hours[h] != *want.Hours[h]:
				t.Errorf("row %d hour %d = %v, want %v", i, h+1, *row.Hours[h], *want.Hours[h])
			}
		}
	}
}

func TestWrite_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "daily")
	store := New(dir)

	if err := store.Write(sampleTable(), "2024-03-05"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "2024-03-05.csv")); err != nil {
		t.Errorf("checkpoint file not created: %v", err)
	}
}

func TestRead_MissingFile(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Read("2024-03-05"); err == nil {
		t.Error("Read() of missing checkpoint succeeded")
	}
}

func TestRead_InvalidAmount(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)

	path := filepath.Join(dir, "2024-03-05.csv")
	corrupted := []byte("Stanice,1,2,3,4,5,6,7,8,9,10,11,12,13,14,15,16,17,18,19,20,21,22,23,24\nBrno,abc,,,,,,,,,,,,,,,,,,,,,,,\n")
	if err := os.WriteFile(path, corrupted, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := store.Read("2024-03-05"); err == nil {
		t.Error("Read() accepted a non-numeric amount cell")
	}
}

func TestListDates(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)

	// Checkpoints plus stray files the scan must ignore.
	for _, name := range []string{
		"2024-03-07.csv",
		"2024-03-05.csv",
		"2024-3-06.csv",
		"notes.txt",
		"stations.csv",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "2024-03-08.csv"), 0o755); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}

	got, err := store.ListDates()
	if err != nil {
		t.Fatalf("ListDates() error = %v", err)
	}

	want := []string{"2024-03-05", "2024-03-07"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ListDates() = %v, want %v", got, want)
	}
}

func TestListDates_MissingDirectory(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "does-not-exist"))

	got, err := store.ListDates()
	if err != nil {
		t.Fatalf("ListDates() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ListDates() = %v, want empty", got)
	}
}
