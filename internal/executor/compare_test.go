package executor

import "testing"

func TestEqual(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{`42`, `42`, true},
		{`42`, `41`, false},
		{`1`, `1.0`, true},
		{`1e2`, `100`, true},
		{`"a"`, `"a"`, true},
		{`"1"`, `1`, false},
		{`null`, `null`, true},
		{`[1,2,3]`, `[1, 2, 3]`, true},
		{`[1,2,3]`, `[3,2,1]`, false},
		{`{"a":1,"b":2}`, `{"b":2,"a":1}`, true},
		{`{"a":{"x":[1,{"q":1,"p":2}]}}`, `{"a":{"x":[1,{"p":2,"q":1}]}}`, true},
		{`{"a":1}`, `{"a":1,"b":null}`, false},
		{`true`, `1`, false},
		{`"<tag>"`, `"<tag>"`, true},
	}
	for _, tc := range tests {
		got, err := Equal([]byte(tc.a), []byte(tc.b))
		if err != nil {
			t.Errorf("Equal(%s, %s): %v", tc.a, tc.b, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Equal(%s, %s) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestEqualInvalid(t *testing.T) {
	if _, err := Equal([]byte(`{`), []byte(`1`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := Equal([]byte(`1`), nil); err == nil {
		t.Error("expected error for empty document")
	}
}

func TestCanonicalize(t *testing.T) {
	got, err := Canonicalize([]byte(` { "b" : [2.50, 1], "a" : "x" } `))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"a":"x","b":[2.5,1]}` {
		t.Errorf("Canonicalize = %s", got)
	}
}
