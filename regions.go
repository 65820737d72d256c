// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

type interval struct {
	start int
	end   int
}

type intervalTreeNode struct {
	interval interval
	maxend   int
}

type intervalTree []intervalTreeNode

// RegionMask is a set of genomic intervals, keyed by contig name
// (without any "chr" prefix). Call Freeze after adding intervals and
// before calling Check or Contains.
type RegionMask struct {
	intervals map[string][]interval
	itrees    map[string]intervalTree
	frozen    bool
}

func normalizeContig(contig string) string {
	return strings.TrimPrefix(contig, "chr")
}

// Add adds the 1-based closed interval [start, end].
func (m *RegionMask) Add(contig string, start, end int) {
	if m.frozen {
		panic("bug: (*RegionMask)Add() called after Freeze()")
	}
	if m.intervals == nil {
		m.intervals = map[string][]interval{}
	}
	contig = normalizeContig(contig)
	m.intervals[contig] = append(m.intervals[contig], interval{start, end})
}

// Len returns the number of intervals.
func (m *RegionMask) Len() int {
	n := 0
	for _, intervals := range m.intervals {
		n += len(intervals)
	}
	return n
}

func (m *RegionMask) Freeze() {
	m.itrees = map[string]intervalTree{}
	for contig, intervals := range m.intervals {
		m.itrees[contig] = m.freeze(intervals)
	}
	m.frozen = true
}

// Check returns true if [start, end] overlaps any interval.
func (m *RegionMask) Check(contig string, start, end int) bool {
	if !m.frozen {
		panic("bug: (*RegionMask)Check() called before Freeze()")
	}
	return m.itrees[normalizeContig(contig)].check(0, interval{start, end})
}

// Contains returns true if the reference allele of v overlaps any
// interval.
func (m *RegionMask) Contains(v Variant) bool {
	return m.Check(v.Contig, v.Start, v.Start+len(v.Ref)-1)
}

func (m *RegionMask) freeze(in []interval) intervalTree {
	if len(in) == 0 {
		return nil
	}
	sort.Slice(in, func(i, j int) bool {
		return in[i].start < in[j].start
	})
	itreesize := 1
	for itreesize < len(in) {
		itreesize = itreesize * 2
	}
	itree := make(intervalTree, itreesize)
	itree.importSlice(0, in)
	for i := len(in); i < itreesize; i++ {
		itree[i].maxend = -1
	}
	return itree
}

func (itree intervalTree) check(root int, q interval) bool {
	return root < len(itree) &&
		itree[root].maxend >= q.start &&
		((itree[root].interval.start <= q.end && itree[root].interval.end >= q.start) ||
			itree.check(root*2+1, q) ||
			itree.check(root*2+2, q))
}

func (itree intervalTree) importSlice(root int, in []interval) int {
	mid := len(in) / 2
	node := intervalTreeNode{interval: in[mid], maxend: in[mid].end}
	if mid > 0 {
		end := itree.importSlice(root*2+1, in[0:mid])
		if end > node.maxend {
			node.maxend = end
		}
	}
	if mid+1 < len(in) {
		end := itree.importSlice(root*2+2, in[mid+1:])
		if end > node.maxend {
			node.maxend = end
		}
	}
	itree[root] = node
	return node.maxend
}

// LoadRegions reads a BED file (0-based half-open intervals) into a
// frozen RegionMask. Each interval is widened by expand bases on
// both sides.
func LoadRegions(path string, expand int) (*RegionMask, error) {
	f, err := zopen(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readRegions(path, f, expand)
}

func readRegions(path string, r io.Reader, expand int) (*RegionMask, error) {
	m := &RegionMask{}
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "track ") || strings.HasPrefix(line, "browser ") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			return nil, &FormatError{Path: path, Line: lineno, Reason: fmt.Sprintf("found %d fields, expected at least 3", len(fields))}
		}
		start, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, &FormatError{Path: path, Line: lineno, Reason: fmt.Sprintf("invalid start %q", fields[1])}
		}
		end, err := strconv.Atoi(fields[2])
		if err != nil || end < start {
			return nil, &FormatError{Path: path, Line: lineno, Reason: fmt.Sprintf("invalid end %q", fields[2])}
		}
		// convert to 1-based closed
		start, end = start+1-expand, end+expand
		if start < 1 {
			start = 1
		}
		m.Add(fields[0], start, end)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Freeze()
	return m, nil
}
