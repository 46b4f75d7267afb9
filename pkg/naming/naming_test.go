package naming

import (
	"os"
	"path/filepath"
	"testing"
)

// TestParse pairs file name values with the naming convention
func TestParse(t *testing.T) {
	conv := []string{"genotype", "sex", "date", "rep"}
	id := Parse("/data/run1/w1118_M_20200101_3.h264", conv, 2)

	if len(id.Fields) != 4 {
		t.Fatalf("Expected 4 fields, got %d", len(id.Fields))
	}
	if id.Fields[0].Name != "genotype" || id.Fields[0].Value != "w1118" {
		t.Errorf("Unexpected first field %+v", id.Fields[0])
	}
	if id.Fields[3].Value != "3" {
		t.Errorf("Expected the extension to be stripped, got %q", id.Fields[3].Value)
	}
	if got := id.VialID("2"); got != "w1118_M_2" {
		t.Errorf("Expected vial id w1118_M_2, got %s", got)
	}
	if got := id.VialID("all"); got != "w1118_M_all" {
		t.Errorf("Expected vial id w1118_M_all, got %s", got)
	}
}

// TestParseMismatch drops unpaired names and values
func TestParseMismatch(t *testing.T) {
	id := Parse("a_b.h264", []string{"x", "y", "z"}, 5)
	if len(id.Fields) != 2 {
		t.Errorf("Expected 2 fields, got %d", len(id.Fields))
	}
	if len(id.VialPrefix) != 2 {
		t.Errorf("Expected vial prefix of 2 values, got %v", id.VialPrefix)
	}

	id = Parse("a_b_c_d.h264", []string{"x"}, 0)
	if len(id.Fields) != 1 || id.VialID("1") != "1" {
		t.Errorf("Unexpected identity %+v", id)
	}
}

// TestPathsFor checks every derived output name
func TestPathsFor(t *testing.T) {
	p := PathsFor("/data/w1118_M.h264")
	want := map[string]string{
		p.Stem:       "/data/w1118_M",
		p.Raw:        "/data/w1118_M.raw.csv",
		p.Filtered:   "/data/w1118_M.filtered.csv",
		p.Diagnostic: "/data/w1118_M.diagnostic.png",
		p.Slopes:     "/data/w1118_M.slopes.csv",
		p.Processed:  "/data/w1118_M.processed.png",
		p.SpotCheck:  "/data/w1118_M.spot_check.png",
		p.ROI:        "/data/w1118_M.ROI.png",
	}
	for got, exp := range want {
		if got != exp {
			t.Errorf("Expected %s, got %s", exp, got)
		}
	}
}

// TestDiscovery finds videos, undone videos and reads process lists
func TestDiscovery(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "day2")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	videos := []string{
		filepath.Join(root, "a_M.h264"),
		filepath.Join(sub, "b_F.h264"),
		filepath.Join(sub, "c_F.h264"),
	}
	for _, v := range videos {
		if err := os.WriteFile(v, []byte("video"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(PathsFor(videos[1]).Slopes, []byte("vial_ID\n"), 0644); err != nil {
		t.Fatal(err)
	}

	all, err := FindVideos(root, "h264")
	if err != nil {
		t.Fatalf("FindVideos failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 videos, got %v", all)
	}

	todo, err := Undone(root, "h264")
	if err != nil {
		t.Fatalf("Undone failed: %v", err)
	}
	if len(todo) != 2 || todo[0] != videos[0] || todo[1] != videos[2] {
		t.Errorf("Unexpected undone list %v", todo)
	}

	prc := filepath.Join(root, "custom.prc")
	listed := append(todo, filepath.Join(root, "missing.h264"))
	if err := WriteProcessList(prc, listed); err != nil {
		t.Fatalf("WriteProcessList failed: %v", err)
	}
	got, missing, err := ReadProcessList(prc)
	if err != nil {
		t.Fatalf("ReadProcessList failed: %v", err)
	}
	if len(got) != 2 || len(missing) != 1 {
		t.Errorf("Expected 2 valid and 1 missing path, got %v and %v", got, missing)
	}
}
