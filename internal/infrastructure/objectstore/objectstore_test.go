package objectstore

import (
	"reflect"
	"testing"
)

func TestObjectStoreKeepsInsertionOrder(t *testing.T) {
	s := New[int]()
	s.Upsert("c", 3)
	s.Upsert("a", 1)
	s.Upsert("b", 2)
	s.Upsert("a", 10)

	if got, want := s.GetList(), []int{3, 10, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("GetList = %v, want %v", got, want)
	}

	s.Delete("c")
	s.Delete("missing")
	if got, want := s.GetList(), []int{10, 2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("after delete GetList = %v, want %v", got, want)
	}
	if v, ok := s.GetOne("b"); !ok || v != 2 {
		t.Fatalf("GetOne(b) = %v, %v", v, ok)
	}
	if _, ok := s.GetOne("c"); ok {
		t.Fatalf("GetOne(c) should miss after delete")
	}

	s.Upsert("d", 4)
	if v, _ := s.GetOne("d"); v != 4 || s.Len() != 3 {
		t.Fatalf("position bookkeeping broken after delete: d=%v len=%d", v, s.Len())
	}

	s.Reset()
	if s.Len() != 0 {
		t.Fatalf("Reset left %d entries", s.Len())
	}
}
