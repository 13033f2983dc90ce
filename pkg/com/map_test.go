package com

import "testing"

func TestMap(t *testing.T) {
	m := NewMap[string, int]()
	m.Put("a", 1)
	m.Put("b", 2)

	if !m.Has("a") || m.Len() != 2 {
		t.Errorf("unexpected contents, len %v", m.Len())
	}
	if v, err := m.Find("b"); err != nil || v != 2 {
		t.Errorf("find b: %v %v", v, err)
	}
	if _, err := m.Find(""); err != ErrNotFound {
		t.Errorf("zero key should be ErrNotFound, got %v", err)
	}
	if v := m.Pop("a"); v != 1 {
		t.Errorf("pop a: %v", v)
	}
	if m.Has("a") {
		t.Error("pop should remove")
	}

	n := 0
	m.Drain(func(int) { n++ })
	if n != 1 || !m.IsEmpty() {
		t.Errorf("drain visited %v, empty %v", n, m.IsEmpty())
	}
}

func TestUid(t *testing.T) {
	a, b := NewUid(), NewUid()
	if a.String() == b.String() {
		t.Error("uids should differ")
	}
	if a.IsEmpty() {
		t.Error("a fresh uid should not be empty")
	}
	if got := UidFrom(a.String()); got.String() != a.String() {
		t.Errorf("round trip mismatch %v != %v", got, a)
	}
	if len(a.Short()) >= len(a.String()) {
		t.Error("short form should be shorter")
	}
}
