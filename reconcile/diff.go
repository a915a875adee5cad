// Package reconcile computes the minimal change set between the last
// persisted snapshot of a collection and freshly fetched remote state.
// It is pure: all fetching happens upstream, which keeps it directly
// unit-testable.
package reconcile

// Changes describes how the local item sequence must change to match
// the remote sequence.
type Changes struct {
	// Added holds ids present remotely but not locally, in remote order.
	Added []string
	// Removed holds ids present locally but not remotely. They are
	// tombstoned at their last known position, never deleted.
	Removed []string
	// Reordered holds ids present on both sides whose position must be
	// corrected. Ids on the longest common subsequence of the two
	// (common-id-restricted) sequences are anchors and stay untouched,
	// which keeps reported churn minimal.
	Reordered []string
	// Positions maps every remote id to its final 0-based position.
	// Applying it to the live set reproduces remote order exactly.
	Positions map[string]int
}

// InSync reports whether the diff found no membership or order changes.
func (c Changes) InSync() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Reordered) == 0
}

// Diff compares the local and remote item-id sequences. Both are
// sequences of stable external ids; duplicates are not expected (the
// remote source keys playlist membership by id) and only the first
// occurrence is considered.
func Diff(local, remote []string) Changes {
	localSet := indexOf(local)
	remoteSet := indexOf(remote)

	ch := Changes{Positions: make(map[string]int, len(remote))}
	for i, id := range remote {
		ch.Positions[id] = i
	}

	for _, id := range remote {
		if _, ok := localSet[id]; !ok {
			ch.Added = append(ch.Added, id)
		}
	}
	for _, id := range local {
		if _, ok := remoteSet[id]; !ok {
			ch.Removed = append(ch.Removed, id)
		}
	}

	// Restrict both sequences to the common ids, then anchor on their LCS.
	localCommon := filterTo(local, remoteSet)
	remoteCommon := filterTo(remote, localSet)
	anchored := lcs(localCommon, remoteCommon)

	for _, id := range remoteCommon {
		if !anchored[id] {
			ch.Reordered = append(ch.Reordered, id)
		}
	}

	return ch
}

func indexOf(ids []string) map[string]int {
	m := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, seen := m[id]; !seen {
			m[id] = i
		}
	}
	return m
}

func filterTo(ids []string, keep map[string]int) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := keep[id]; ok && !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	return out
}

// lcs returns the set of ids on one longest common subsequence of a and b.
func lcs(a, b []string) map[string]bool {
	n, m := len(a), len(b)
	members := make(map[string]bool, min(n, m))
	if n == 0 || m == 0 {
		return members
	}

	// Standard DP table; sequences are playlist-sized so O(n*m) is fine.
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else {
				dp[i][j] = max(dp[i-1][j], dp[i][j-1])
			}
		}
	}

	for i, j := n, m; i > 0 && j > 0; {
		switch {
		case a[i-1] == b[j-1]:
			members[a[i-1]] = true
			i--
			j--
		case dp[i-1][j] >= dp[i][j-1]:
			i--
		default:
			j--
		}
	}
	return members
}
