package syncmap_test

import (
	"testing"

	"github.com/hernuell/bellhop/syncmap"
)

func TestMap(t *testing.T) {
	m := syncmap.New[string, int]()
	if _, ok := m.Load("bocchi"); ok {
		t.Error("loaded from empty map")
	}
	m.Store("bocchi", 1)
	if v, ok := m.Load("bocchi"); !ok || v != 1 {
		t.Errorf("wrong load: want 1, true; got %d, %t", v, ok)
	}
	if n := m.Len(); n != 1 {
		t.Errorf("wrong len: want 1, got %d", n)
	}
	m.Store("bocchi", 2)
	if v, _ := m.Load("bocchi"); v != 2 {
		t.Errorf("store didn't overwrite: want 2, got %d", v)
	}
	m.Delete("bocchi")
	if _, ok := m.Load("bocchi"); ok {
		t.Error("loaded after delete")
	}
	if n := m.Len(); n != 0 {
		t.Errorf("wrong len after delete: want 0, got %d", n)
	}
}

func TestAll(t *testing.T) {
	m := syncmap.New[string, int]()
	m.Store("bocchi", 1)
	m.Store("ryo", 2)
	got := make(map[string]int)
	for k, v := range m.All() {
		got[k] = v
	}
	if len(got) != 2 || got["bocchi"] != 1 || got["ryo"] != 2 {
		t.Errorf("wrong elements: %v", got)
	}
}
