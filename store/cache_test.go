package store

import (
	"errors"
	"testing"

	"github.com/ndlib/gzstore/resource"
)

func TestSizeCache(t *testing.T) {
	var calls int
	fill := func(key string) (int64, error) {
		calls++
		switch key {
		case "present":
			return 42, nil
		case "missing":
			return 0, resource.ErrNotFound
		}
		return 0, errors.New("network down")
	}
	sc := newSizeCache()
	var table = []struct {
		key   string
		size  int64
		err   error
		calls int
	}{
		{"present", 42, nil, 1},
		{"present", 42, nil, 1}, // cached
		{"missing", 0, resource.ErrNotFound, 2},
		{"missing", 0, resource.ErrNotFound, 2}, // cached miss
		{"broken", 0, nil, 3},
		{"broken", 0, nil, 4}, // errors are not cached
	}
	for _, tab := range table {
		size, err := sc.Get(tab.key, fill)
		if size != tab.size {
			t.Errorf("%s: got size %d, expected %d", tab.key, size, tab.size)
		}
		if tab.err != nil && err != tab.err {
			t.Errorf("%s: got error %v, expected %v", tab.key, err, tab.err)
		}
		if calls != tab.calls {
			t.Errorf("%s: fill called %d times, expected %d", tab.key, calls, tab.calls)
		}
	}
	sc.Set("present", sizeDeleted)
	if _, err := sc.Get("present", fill); err != resource.ErrNotFound {
		t.Errorf("got %v after delete, expected ErrNotFound", err)
	}
}
