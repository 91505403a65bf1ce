package tabular

import "testing"

func TestParseFloat(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.5", 1.5, true},
		{" 2 ", 2, true},
		{"-3e2", -300, true},
		{"", 0, false},
		{"na", 0, false},
		{"NaN", 0, false},
		{"null", 0, false},
		{"None", 0, false},
		{"liver", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseFloat(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("ParseFloat(%q) = %v, %v; want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestAxisValue(t *testing.T) {
	if v, ok := AxisValue("4.5"); !ok || v != 4.5 {
		t.Fatalf("numeric axis: %v %v", v, ok)
	}
	v, ok := AxisValue("2023-06-15")
	if !ok || v <= 0 {
		t.Fatalf("datetime axis: %v %v", v, ok)
	}
	if _, ok := AxisValue("liver"); ok {
		t.Fatalf("categorical cell should not coerce")
	}
}

func TestFrameSelectAndFloats(t *testing.T) {
	f := NewFrame([]string{"a", "b", "c"}, [][]string{{"1", "x", "2"}, {"3", "y", ""}})
	sel := f.Select([]string{"c", "a"})
	if sel.Width() != 2 || sel.Columns[0] != "c" || sel.Rows[1][1] != "3" {
		t.Fatalf("unexpected selection %+v", sel)
	}
	vals, present, ok := f.Floats("c")
	if !ok || len(vals) != 2 {
		t.Fatalf("floats: %v %v %v", vals, present, ok)
	}
	if !present[0] || present[1] {
		t.Fatalf("presence mask wrong: %v", present)
	}
}
