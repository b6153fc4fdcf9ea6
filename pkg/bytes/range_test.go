// Copyright 2019 the LinuxBoot Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bytes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRangeIntersect(t *testing.T) {
	for _, tt := range []struct {
		name string
		a, b Range
		want bool
	}{
		{"disjoint", Range{0, 0x1000}, Range{0x2000, 0x1000}, false},
		{"touching", Range{0, 0x1000}, Range{0x1000, 0x1000}, false},
		{"overlap", Range{0, 0x1000}, Range{0x800, 0x1000}, true},
		{"inside", Range{0, 0x100000}, Range{0x1000, 0x9e000}, true},
		{"empty", Range{0, 0x1000}, Range{0x800, 0}, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.a.Intersect(tt.b))
			require.Equal(t, tt.want, tt.b.Intersect(tt.a))
		})
	}
}

func TestRangesSortAndMerge(t *testing.T) {
	t.Run("nothing_to_merge", func(t *testing.T) {
		entries := Ranges{{Offset: 0x3000, Length: 0x1000}, {Offset: 0, Length: 0x1000}}
		entries.SortAndMerge()
		require.Equal(t, Ranges{{Offset: 0, Length: 0x1000}, {Offset: 0x3000, Length: 0x1000}}, entries)
	})
	t.Run("merge_overlapping", func(t *testing.T) {
		entries := Ranges{{Offset: 0x2000, Length: 0x3000}, {Offset: 0, Length: 0x3000}}
		entries.SortAndMerge()
		require.Equal(t, Ranges{{Offset: 0, Length: 0x5000}}, entries)
	})
	t.Run("merge_touching", func(t *testing.T) {
		entries := Ranges{{Offset: 0x1000, Length: 0x1000}, {Offset: 0, Length: 0x1000}}
		entries.SortAndMerge()
		require.Equal(t, Ranges{{Offset: 0, Length: 0x2000}}, entries)
	})
	t.Run("merge_next_range_inside_previous", func(t *testing.T) {
		entries := Ranges{
			{Offset: 0x9f000, Length: 0},
			{Offset: 0x1000, Length: 0x9e000},
			{Offset: 0, Length: 0x100000},
			{Offset: 0x200000, Length: 0x1000},
		}
		entries.SortAndMerge()
		require.Equal(t, Ranges{
			{Offset: 0, Length: 0x100000},
			{Offset: 0x200000, Length: 0x1000},
		}, entries)
		require.Equal(t, uint64(0x101000), entries.Total())
		require.True(t, entries.IsIn(0xfffff))
		require.False(t, entries.IsIn(0x100000))
	})
}

func TestRangeExclude(t *testing.T) {
	whole := Range{Offset: 0, Length: 10}

	require.Equal(t,
		Ranges{{Offset: 0, Length: 1}, {Offset: 2, Length: 3}, {Offset: 6, Length: 4}},
		whole.Exclude(Range{Offset: 1, Length: 1}, Range{Offset: 5, Length: 1}),
	)
	require.Equal(t, Ranges{{Offset: 1, Length: 9}}, whole.Exclude(Range{Offset: 0, Length: 1}))
	require.Equal(t, Ranges{{Offset: 0, Length: 9}}, whole.Exclude(Range{Offset: 9, Length: 2}))
	require.Equal(t, Ranges{{Offset: 11, Length: 9}}, Range{Offset: 10, Length: 10}.Exclude(Range{Offset: 9, Length: 2}))
	require.Equal(t, Ranges{whole}, whole.Exclude())
	require.Equal(t, Ranges{whole}, whole.Exclude(Range{Offset: 10, Length: 10}))
	require.Nil(t, whole.Exclude(Range{Offset: 0, Length: 10}))
	require.Nil(t, Range{Offset: 10, Length: 10}.Exclude(Range{Offset: 0, Length: 30}))
}
