package policy

import "testing"

func TestNameMatcher_Match(t *testing.T) {
	tests := []struct {
		name       string
		matcher    NameMatcher
		referenced []string
		want       bool
	}{
		{
			name:       "contains hit",
			matcher:    NameMatcher{Kind: Contains, Names: []string{"users"}},
			referenced: []string{"orders", "users"},
			want:       true,
		},
		{
			name:       "contains is case-insensitive",
			matcher:    NameMatcher{Kind: Contains, Names: []string{"USERS"}},
			referenced: []string{"users"},
			want:       true,
		},
		{
			name:       "contains miss",
			matcher:    NameMatcher{Kind: Contains, Names: []string{"products"}},
			referenced: []string{"orders", "users"},
			want:       false,
		},
		{
			name:       "does-not-contain hit when one configured name is absent",
			matcher:    NameMatcher{Kind: DoesNotContain, Names: []string{"users", "products"}},
			referenced: []string{"users"},
			want:       true,
		},
		{
			name:       "does-not-contain miss when all configured names present",
			matcher:    NameMatcher{Kind: DoesNotContain, Names: []string{"users"}},
			referenced: []string{"users", "orders"},
			want:       false,
		},
		{
			name:       "ends-with",
			matcher:    NameMatcher{Kind: EndsWith, Names: []string{"_audit"}},
			referenced: []string{"users_audit"},
			want:       true,
		},
		{
			name:       "starts-with",
			matcher:    NameMatcher{Kind: StartsWith, Names: []string{"tmp_"}},
			referenced: []string{"TMP_import"},
			want:       true,
		},
		{
			name:       "contains-every requires set equality",
			matcher:    NameMatcher{Kind: ContainsEvery, Names: []string{"users", "orders"}},
			referenced: []string{"users"},
			want:       false,
		},
		{
			name:       "contains-every is order-independent",
			matcher:    NameMatcher{Kind: ContainsEvery, Names: []string{"users", "orders"}},
			referenced: []string{"Orders", "Users"},
			want:       true,
		},
		{
			name:       "contains-every rejects supersets",
			matcher:    NameMatcher{Kind: ContainsEvery, Names: []string{"users"}},
			referenced: []string{"users", "orders"},
			want:       false,
		},
		{
			name:       "does-not-contain-every negates equality",
			matcher:    NameMatcher{Kind: DoesNotContainEvery, Names: []string{"users"}},
			referenced: []string{"users", "orders"},
			want:       true,
		},
		{
			name:       "contains-only accepts subsets",
			matcher:    NameMatcher{Kind: ContainsOnly, Names: []string{"users", "orders"}},
			referenced: []string{"users"},
			want:       true,
		},
		{
			name:       "contains-only rejects stray names",
			matcher:    NameMatcher{Kind: ContainsOnly, Names: []string{"users"}},
			referenced: []string{"users", "orders"},
			want:       false,
		},
		{
			name:       "empty referenced set never matches",
			matcher:    NameMatcher{Kind: DoesNotContain, Names: []string{"users"}},
			referenced: nil,
			want:       false,
		},
		{
			name:       "empty configured set never matches",
			matcher:    NameMatcher{Kind: Contains, Names: nil},
			referenced: []string{"users"},
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.matcher.Match(tt.referenced); got != tt.want {
				t.Errorf("Match(%v) = %v, want %v", tt.referenced, got, tt.want)
			}
		})
	}
}
