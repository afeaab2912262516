package dom

import "testing"

func TestUnionFind_EvalCompressesPath(t *testing.T) {
	// Chain 0 <- 1 <- 2 <- 3 linked in reverse DFS order.
	semi := []int{4, 2, 0, 1}
	u := newUnionFind(semi)
	for idx := 3; idx > 0; idx-- {
		u.activate(idx)
		u.link(idx-1, idx)
	}

	if got := u.eval(3); got != 2 {
		t.Fatalf("eval(3) = %d, want 2", got)
	}
	if got := u.eval(1); got != 1 {
		t.Fatalf("eval(1) = %d, want 1", got)
	}
	for _, v := range []int{1, 2, 3} {
		if u.parent[v] != 0 {
			t.Errorf("parent[%d] = %d after compression, want 0", v, u.parent[v])
		}
	}
}

func TestUnionFind_RootIsExcluded(t *testing.T) {
	semi := []int{3, 0, 1}
	u := newUnionFind(semi)

	// 1 is processed but not linked yet; it must not win against itself
	// while still a root.
	if got := u.eval(1); got != 0 {
		t.Fatalf("eval on unactivated root = %d, want sentinel 0", got)
	}
	u.activate(2)
	u.link(1, 2)
	if got := u.eval(2); got != 2 {
		t.Fatalf("eval(2) = %d, want 2", got)
	}
}
