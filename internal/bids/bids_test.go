package bids

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseDSName(t *testing.T) {
	tests := []struct {
		name    string
		want    DSName
		wantErr bool
	}{
		{"ABCDEFGH_epilepsy_20230615_01.ds", DSName{"ABCDEFGH", 20230615, 1}, false},
		{"/raw/p1/ABCDEFGH_epilepsy_20230615_03.ds", DSName{"ABCDEFGH", 20230615, 3}, false},
		{"ABCDEFGH_epilepsy_20230615_02-c.ds", DSName{"ABCDEFGH", 20230615, 2}, false},
		{"ABCDEFGH_epilepsy_20230615_01", DSName{}, true},
		{"ABCDEFGH_EEGImpedance_20230615_01.ds", DSName{}, true},
		{"ABCDEFGH_epilepsy_2023061_01.ds", DSName{}, true},
		{"ABCDEFGH_epilepsy_20230615_xx.ds", DSName{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDSName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDSName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseDSName(%q) = %+v, want %+v", tt.name, got, tt.want)
			}
		})
	}
}

func TestDSNameString(t *testing.T) {
	ds := DSName{MEGCode: "ABCDEFGH", Date: 20230615, Run: 2}
	if got := ds.String(); got != "ABCDEFGH_epilepsy_20230615_02.ds" {
		t.Errorf("String() = %q", got)
	}
}

func TestFindSessionDate(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"ABCDEFGH_epilepsy_20230616_02.ds",
		"ABCDEFGH_epilepsy_20230615_01.ds",
		"ABCDEFGH_EEGImpedance.ds",
		"notes",
	} {
		if err := os.Mkdir(filepath.Join(dir, name), 0755); err != nil {
			t.Fatal(err)
		}
	}
	// files with a .ds name are ignored
	if err := os.WriteFile(filepath.Join(dir, "ABCDEFGH_epilepsy_20200101_01.ds"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	date, err := FindSessionDate(dir)
	if err != nil {
		t.Fatalf("FindSessionDate() error = %v", err)
	}
	if date != 20230615 {
		t.Errorf("FindSessionDate() = %d, want 20230615", date)
	}

	_, err = FindSessionDate(t.TempDir())
	if !errors.Is(err, ErrNoRecording) {
		t.Errorf("FindSessionDate(empty) error = %v, want ErrNoRecording", err)
	}
}

func TestAssignTasks(t *testing.T) {
	got := AssignTasks([]int{4, 2, 7})
	want := []RunTask{
		{Run: 2, Task: TaskEyesOpen, TaskRun: 1},
		{Run: 4, Task: TaskEyesClosed, TaskRun: 1},
		{Run: 7, Task: TaskEyesClosed, TaskRun: 2},
	}
	if len(got) != len(want) {
		t.Fatalf("AssignTasks() = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("AssignTasks()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	// operator swaps run 7 to eyes open
	got[2].Task = TaskEyesOpen
	got = NumberTaskRuns(got)
	if got[2].TaskRun != 2 || got[1].TaskRun != 1 {
		t.Errorf("NumberTaskRuns() = %+v", got)
	}
}

func TestValidateTask(t *testing.T) {
	if err := ValidateTask(TaskEyesClosed); err != nil {
		t.Errorf("ValidateTask(%s) error = %v", TaskEyesClosed, err)
	}
	if err := ValidateTask("rest"); err == nil {
		t.Error("ValidateTask(rest) accepted an invalid task")
	}
}

func TestLayout(t *testing.T) {
	l := Layout{Root: "/data"}

	tests := []struct {
		got, want string
	}{
		{l.SubjectDir("p1234"), "/data/sub-p1234"},
		{l.SessionDir("p1234", "meg"), "/data/sub-p1234/ses-meg"},
		{l.SourceMEGDir("p1234"), "/data/sourcedata/sub-p1234/ses-meg/meg"},
		{l.EmptyRoomSessionDir(20230610), "/data/sub-emptyroom/ses-20230610"},
		{l.EmptyRoomSourceDir(20230610), "/data/sourcedata/sub-emptyroom/ses-20230610/meg"},
		{l.ParticipantsFile(), "/data/participants.tsv"},
		{BIDSBaseName("p1234", "meg", RunTask{Task: TaskEyesOpen, TaskRun: 1}), "sub-p1234_ses-meg_task-resteyesopen_run-1"},
	}
	for _, tt := range tests {
		if filepath.ToSlash(tt.got) != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestEmptyRoomDates(t *testing.T) {
	l := Layout{Root: t.TempDir()}
	for _, ses := range []string{"ses-20230610", "ses-20221201", "temp", "ses-notadate"} {
		if err := os.MkdirAll(filepath.Join(l.EmptyRoomDir(), ses), 0755); err != nil {
			t.Fatal(err)
		}
	}

	dates, err := l.EmptyRoomDates()
	if err != nil {
		t.Fatalf("EmptyRoomDates() error = %v", err)
	}
	if len(dates) != 2 || dates[0] != 20221201 || dates[1] != 20230610 {
		t.Errorf("EmptyRoomDates() = %v", dates)
	}
}
