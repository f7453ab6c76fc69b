package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hisab/internal/core"
	"hisab/internal/sheets"
)

func sample() core.Dataset {
	return core.Dataset{
		InitiationDate: core.NewDate(2024, 1, 1),
		FamilyMembers: []core.FamilyMember{{ID: "fm1", Name: "Amina, Sr.", ExpectedHistory: []core.TimeValue{
			{Amount: 10000, EffectiveDate: core.NewDate(2024, 1, 1)},
		}}},
	}
}

func TestMirrorRecordsTables(t *testing.T) {
	m := New()
	if err := m.Mirror(context.Background(), sample(), 3); err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	if m.Revision() != 3 || m.Runs() != 1 {
		t.Errorf("revision = %d, runs = %d", m.Revision(), m.Runs())
	}
	members, ok := m.Table(sheets.TabFamilyMembers)
	if !ok || len(members.Rows) != 1 || members.Rows[0][1] != "Amina, Sr." {
		t.Errorf("members = %+v", members)
	}
}

func TestMirrorFailNext(t *testing.T) {
	m := New()
	boom := errors.New("boom")
	m.FailNext(boom)

	if err := m.Mirror(context.Background(), sample(), 1); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if m.Revision() != 0 {
		t.Errorf("failed run advanced revision to %d", m.Revision())
	}
	if err := m.Mirror(context.Background(), sample(), 2); err != nil {
		t.Errorf("second run: %v", err)
	}
	if m.Runs() != 2 || m.Revision() != 2 {
		t.Errorf("runs = %d, revision = %d", m.Runs(), m.Revision())
	}
}

func TestMirrorWritesCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mirror")
	m := NewWithDir(dir)
	if err := m.Mirror(context.Background(), sample(), 5); err != nil {
		t.Fatalf("Mirror: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, sheets.TabFamilyMembers+".csv"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := "ID,Name,Expected History\nfm1,\"Amina, Sr.\",10000 from 2024-01-01\n"
	if string(b) != want {
		t.Errorf("csv = %q, want %q", b, want)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
	if len(entries) != 8 {
		t.Errorf("got %d files, want 8", len(entries))
	}
}
