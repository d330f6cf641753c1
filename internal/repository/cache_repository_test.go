package repository

import "testing"

func TestLeaderboardKey(t *testing.T) {
	if got := leaderboardKey("", 7); got != "performance:leaderboard:7:" {
		t.Errorf("unexpected key %s", got)
	}
	if got := leaderboardKey("Algebra", 30); got != "performance:leaderboard:30:Algebra" {
		t.Errorf("unexpected key %s", got)
	}
	if leaderboardKey("", 7) == leaderboardKey("", 30) {
		t.Error("windows share a cache key")
	}
}
