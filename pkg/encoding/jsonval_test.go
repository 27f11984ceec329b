package encoding

import "testing"

func TestJSONGetSetRoot(t *testing.T) {
	j, err := ParseJSON([]byte(`{"a": 1, "b": {"c": 2}}`))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	v, ok, err := j.Get("$.b.c")
	if err != nil || !ok {
		t.Fatalf("Get $.b.c: v=%v ok=%v err=%v", v, ok, err)
	}
	if f, ok := v.(float64); !ok || f != 2 {
		t.Errorf("Get $.b.c = %v, want 2", v)
	}
}

func TestJSONSetCreatesIntermediateObjects(t *testing.T) {
	j, _ := ParseJSON([]byte(`{}`))
	if err := j.Set("$.a.b", "hello", false, false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, _ := j.Get("$.a.b")
	if !ok || v != "hello" {
		t.Errorf("Get after Set = %v ok=%v, want hello/true", v, ok)
	}
}

func TestJSONSetNXXX(t *testing.T) {
	j, _ := ParseJSON([]byte(`{"a": 1}`))
	if err := j.Set("$.a", 2, true, false); err == nil {
		t.Error("NX set on existing path should fail")
	}
	if err := j.Set("$.missing", 2, false, true); err == nil {
		t.Error("XX set on missing path should fail")
	}
	if err := j.Set("$.a", 2, false, true); err != nil {
		t.Errorf("XX set on existing path should succeed: %v", err)
	}
}

func TestJSONArrayIndex(t *testing.T) {
	j, _ := ParseJSON([]byte(`{"list": [1, 2, 3]}`))
	v, ok, err := j.Get("$.list[1]")
	if err != nil || !ok {
		t.Fatalf("Get $.list[1]: ok=%v err=%v", ok, err)
	}
	if f, ok := v.(float64); !ok || f != 2 {
		t.Errorf("Get $.list[1] = %v, want 2", v)
	}
}

func TestJSONDel(t *testing.T) {
	j, _ := ParseJSON([]byte(`{"a": 1, "b": 2}`))
	if !j.Del("$.a") {
		t.Error("Del $.a should report true")
	}
	if _, ok, _ := j.Get("$.a"); ok {
		t.Error("$.a should be gone after Del")
	}
	if j.Del("$.missing") {
		t.Error("Del of missing path should report false")
	}
}

func TestJSONMerge(t *testing.T) {
	j, _ := ParseJSON([]byte(`{"a": 1, "b": {"x": 1, "y": 2}}`))
	if err := j.Merge("$", map[string]any{"b": map[string]any{"y": nil, "z": 3}}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if _, ok, _ := j.Get("$.b.z"); !ok {
		t.Error("$.b.z should have been added by merge patch")
	}
	if _, ok, _ := j.Get("$.b.y"); ok {
		t.Error("$.b.y should have been deleted by null-valued merge patch")
	}
	if _, ok, _ := j.Get("$.b.x"); !ok {
		t.Error("$.b.x should survive merge untouched")
	}
}
