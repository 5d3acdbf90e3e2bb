package participants

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	reg, err := Load(filepath.Join(t.TempDir(), "participants.tsv"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(reg.Rows()) != 0 {
		t.Errorf("Rows() = %d, want 0", len(reg.Rows()))
	}
	if len(reg.Header()) != len(DefaultColumns) {
		t.Errorf("Header() has %d columns, want %d", len(reg.Header()), len(DefaultColumns))
	}
}

func TestUpsertKeepsOrderAndConcurrentEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "participants.tsv")
	writeFile(t, path, "participant_id\tsex\thandedness\tses-meg\n"+
		"sub-p0002\tF\tR\t1\n"+
		"sub-p0009\tn/a\tn/a\t0\n")

	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	row, ok := reg.Find("p0009")
	if !ok {
		t.Fatal("Find(p0009) missed")
	}
	row[ColumnSex] = "M"

	// someone else adds a participant while the operator is answering prompts
	writeFile(t, path, "participant_id\tsex\thandedness\tses-meg\n"+
		"sub-p0002\tF\tR\t1\n"+
		"sub-p0009\tn/a\tn/a\t0\n"+
		"sub-p0001\tM\tL\t0\n")

	if _, err := Upsert(path, row); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "participant_id\tsex\thandedness\tses-meg\n" +
		"sub-p0001\tM\tL\t0\n" +
		"sub-p0002\tF\tR\t1\n" +
		"sub-p0009\tM\tn/a\t0\n"
	if string(data) != want {
		t.Errorf("participants.tsv =\n%s\nwant\n%s", data, want)
	}
}

func TestUpsertNewSubjectAddsColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "participants.tsv")
	writeFile(t, path, "participant_id\tsex\n"+"sub-p0002\tF\n")

	reg, err := Upsert(path, NewRow("p0001"))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if len(reg.Header()) != len(DefaultColumns) {
		t.Errorf("Header() has %d columns, want %d", len(reg.Header()), len(DefaultColumns))
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	rows := reloaded.Rows()
	if len(rows) != 2 || rows[0].ID() != "sub-p0001" {
		t.Fatalf("rows = %v", rows)
	}
	if rows[1]["ses-meg"] != "" {
		t.Errorf("existing row got ses-meg = %q, want empty", rows[1]["ses-meg"])
	}
	if rows[0]["handedness"] != NA {
		t.Errorf("new row handedness = %q, want n/a", rows[0]["handedness"])
	}
}

func TestMissingFieldsAndSetField(t *testing.T) {
	row := NewRow("p1234")
	if got := MissingFields(row); len(got) != 2 {
		t.Fatalf("MissingFields() = %v", got)
	}

	if err := SetField(row, ColumnSex, "X"); err == nil {
		t.Error("SetField(sex, X) accepted an invalid value")
	}
	if err := SetField(row, "ses-meg", "1"); err == nil {
		t.Error("SetField(ses-meg) accepted a non-editable column")
	}
	if err := SetField(row, ColumnHandedness, "L"); err != nil {
		t.Fatalf("SetField() error = %v", err)
	}
	if got := MissingFields(row); len(got) != 1 || got[0] != ColumnSex {
		t.Errorf("MissingFields() = %v, want [sex]", got)
	}
}

func TestScanSessions(t *testing.T) {
	subj := t.TempDir()
	for _, p := range []string{
		"ses-meg/meg/sub-p1234_ses-meg_task-resteyesopen_run-1_meg.ds",
		"ses-research/anat/sub-p1234_ses-research_acq-fatsat_T2w.nii.gz",
		"ses-research/func/sub-p1234_ses-research_task-resteyesclosed_physio.tsv.gz",
		"ses-altclinical/anat/sub-p1234_ses-altclinical_FLAIR.nii.gz",
		"ses-unknown/notes.txt",
	} {
		writeFile(t, filepath.Join(subj, p), "")
	}
	if err := os.MkdirAll(filepath.Join(subj, "ses-research", "dwi"), 0755); err != nil {
		t.Fatal(err)
	}

	row := NewRow("p1234")
	added, err := ScanSessions(row, subj)
	if err != nil {
		t.Fatalf("ScanSessions() error = %v", err)
	}

	present := []string{
		"ses-meg", "ses-meg_task-resteyesopen",
		"ses-research", "ses-research_anat-t2fatsat", "ses-research_dwi",
		"ses-research_task-resteyesclosed", "ses-research_task-resteyesclosed_physio",
		"ses-altclinical", "ses-altclinical_anat-flair",
	}
	for _, col := range present {
		if row[col] != Present {
			t.Errorf("%s = %q, want 1", col, row[col])
		}
	}
	for _, col := range []string{"ses-meg_task-resteyesclosed", "ses-research_perf", "ses-altclinical_anat-t1", "ses-megpostop"} {
		if row[col] != Absent {
			t.Errorf("%s = %q, want 0", col, row[col])
		}
	}
	if _, ok := row["ses-unknown"]; ok {
		t.Error("ScanSessions() added a column the row did not carry")
	}
	if len(added) != len(present) {
		t.Errorf("added = %v", added)
	}

	// a second scan changes nothing
	added, err = ScanSessions(row, subj)
	if err != nil || len(added) != 0 {
		t.Errorf("rescan added = %v, err = %v", added, err)
	}
}

func TestSaveQuotesNothingForPlainValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "participants.tsv")
	reg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	reg.Put(NewRow("p1234"))
	if err := reg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), `"`) {
		t.Errorf("unexpected quoting in %s", data)
	}
	if !strings.HasPrefix(string(data), "participant_id\tsex\thandedness\t") {
		t.Errorf("header = %q", strings.SplitN(string(data), "\n", 2)[0])
	}
}
