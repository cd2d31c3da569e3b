package main

import (
	"sort"
	"testing"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	sort.Strings(names)
	want := []string{"create-user", "migrate", "prune", "users"}
	if len(names) != len(want) {
		t.Fatalf("commands = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("commands = %v, want %v", names, want)
		}
	}

	cu, _, err := root.Find([]string{"create-user"})
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"name", "email", "password"} {
		if cu.Flags().Lookup(f) == nil {
			t.Errorf("create-user missing --%s", f)
		}
	}
}
