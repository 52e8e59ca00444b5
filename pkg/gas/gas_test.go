package gas

import (
	"errors"
	"testing"
)

const sampleTable = `
[gases.Ar_A]
node = 7
curve = 1
flow_range = [1.2, 60.0]
cal_factor = 1.0
int_scale = 60

[gases.He_A]
node = 7
curve = 0
flow_range = [1.2, 60.0]
cal_factor = 1.0
int_scale = 60

[gases.H2_A]
node = 10
curve = 0
flow_range = [0.4, 20.0]
cal_factor = 1.0
int_scale = 20
feed_valve = "D"
feed_target = "ON"

[gases.O2_A]
node = 11
flow_range = [0.2, 10.0]
cal_factor = 1.02
int_scale = 10
`

func TestLoadTableString(t *testing.T) {
	table, err := LoadTableString(sampleTable)
	if err != nil {
		t.Fatalf("LoadTableString: %v", err)
	}

	ar, err := table.Lookup("Ar_A")
	if err != nil {
		t.Fatalf("Lookup(Ar_A): %v", err)
	}
	if ar.Node != 7 {
		t.Errorf("Ar_A node = %d, want 7", ar.Node)
	}
	if ar.Curve == nil || *ar.Curve != 1 {
		t.Errorf("Ar_A curve = %v, want 1", ar.Curve)
	}
	if ar.FlowMin != 1.2 || ar.FlowMax != 60.0 {
		t.Errorf("Ar_A range = [%g, %g], want [1.2, 60]", ar.FlowMin, ar.FlowMax)
	}

	o2, _ := table.Lookup("O2_A")
	if o2.Curve != nil {
		t.Errorf("O2_A curve = %v, want nil (single fixed curve)", *o2.Curve)
	}

	h2, _ := table.Lookup("H2_A")
	if h2.FeedValve != "D" || !h2.FeedOn {
		t.Errorf("H2_A feed binding = %q/%v, want D/ON", h2.FeedValve, h2.FeedOn)
	}
}

func TestDefaultFamiliesFilterToRig(t *testing.T) {
	table, err := LoadTableString(sampleTable)
	if err != nil {
		t.Fatalf("LoadTableString: %v", err)
	}

	fam := table.FamilyOf("Ar_A")
	// He_A and Ar_A are present; N2_A is not on this rig.
	if len(fam) != 2 || fam[0] != "He_A" || fam[1] != "Ar_A" {
		t.Errorf("FamilyOf(Ar_A) = %v, want [He_A Ar_A]", fam)
	}

	if fam := table.FamilyOf("O2_A"); len(fam) != 1 || fam[0] != "O2_A" {
		t.Errorf("FamilyOf(O2_A) = %v, want [O2_A]", fam)
	}
}

func TestLookupUnknownGas(t *testing.T) {
	table, _ := LoadTableString(sampleTable)
	_, err := table.Lookup("Xe_A")
	if !errors.Is(err, ErrUnknownGas) {
		t.Errorf("want ErrUnknownGas, got %v", err)
	}
}

func TestValidationRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		defs []Definition
	}{
		{"zero cal factor", []Definition{
			{Name: "X", Node: 1, FlowMin: 1, FlowMax: 2, CalFactor: 0, IntScale: 1},
		}},
		{"zero scale", []Definition{
			{Name: "X", Node: 1, FlowMin: 1, FlowMax: 2, CalFactor: 1, IntScale: 0},
		}},
		{"inverted range", []Definition{
			{Name: "X", Node: 1, FlowMin: 5, FlowMax: 2, CalFactor: 1, IntScale: 1},
		}},
		{"duplicate", []Definition{
			{Name: "X", Node: 1, FlowMin: 1, FlowMax: 2, CalFactor: 1, IntScale: 1},
			{Name: "X", Node: 2, FlowMin: 1, FlowMax: 2, CalFactor: 1, IntScale: 1},
		}},
	}
	for _, tt := range tests {
		if _, err := NewTable(tt.defs, nil); err == nil {
			t.Errorf("%s: NewTable should fail", tt.name)
		}
	}
}

func TestLoadRejectsMalformedRange(t *testing.T) {
	_, err := LoadTableString(`
[gases.X]
node = 1
flow_range = [1.0]
cal_factor = 1.0
int_scale = 1.0
`)
	if err == nil {
		t.Error("one-element flow_range should fail")
	}
}

func TestNodesDeduplicated(t *testing.T) {
	table, _ := LoadTableString(sampleTable)
	nodes := table.Nodes()
	want := []byte{7, 10, 11}
	if len(nodes) != len(want) {
		t.Fatalf("Nodes() = %v, want %v", nodes, want)
	}
	for i := range want {
		if nodes[i] != want[i] {
			t.Errorf("Nodes()[%d] = %d, want %d", i, nodes[i], want[i])
		}
	}
}
