package lqueryfs

import (
	"os/user"
	"testing"
)

func TestGroup(t *testing.T) {
	u, err := user.Current()
	if err != nil {
		t.Skipf("%v", err)
	}
	g, err := Group(u)
	if err != nil {
		// containers may lack an entry in the group database
		t.Skipf("%v", err)
	}
	if g == "" {
		t.Fatalf("empty group")
	}
}
