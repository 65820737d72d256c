// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/compress/s2"
)

// MaxAlleles is the number of distinct allele indices (including the
// reference) that a genotype call can refer to.
const MaxAlleles = 255

const (
	flagGT byte = 1 << iota
	flagPhased
	flagHaploid
	flagAD
	flagDP
	flagGQ
	flagPL
)

var errTruncatedRun = errors.New("genotype run is truncated")

// GenotypeRun is the encoded sequence of one variant's genotype
// calls, one per sample, in dataset sample order.
type GenotypeRun struct {
	N          int
	Compressed bool
	Data       []byte
}

// NewGenotypeRun encodes calls into a new run.
func NewGenotypeRun(calls []Genotype, compress bool) (GenotypeRun, error) {
	data, err := appendGenotypes(nil, calls, compress)
	if err != nil {
		return GenotypeRun{}, err
	}
	return GenotypeRun{N: len(calls), Compressed: compress, Data: data}, nil
}

// appendGenotypes appends the encoding of calls to dst.
func appendGenotypes(dst []byte, calls []Genotype, compress bool) ([]byte, error) {
	if !compress {
		return encodeCalls(dst, calls)
	}
	raw, err := encodeCalls(nil, calls)
	if err != nil {
		return nil, err
	}
	return append(dst, s2.Encode(nil, raw)...), nil
}

func encodeCalls(dst []byte, calls []Genotype) ([]byte, error) {
	var tmp [binary.MaxVarintLen64]byte
	putInt := func(x int) {
		n := binary.PutUvarint(tmp[:], uint64(x))
		dst = append(dst, tmp[:n]...)
	}
	putInts := func(xs []int) {
		putInt(len(xs))
		for _, x := range xs {
			putInt(x)
		}
	}
	for i, g := range calls {
		var flags byte
		switch len(g.GT) {
		case 0:
		case 1:
			flags |= flagGT | flagHaploid
		case 2:
			flags |= flagGT
		default:
			return nil, &EncodingError{Index: i, Reason: fmt.Sprintf("ploidy %d is not supported", len(g.GT))}
		}
		for _, a := range g.GT {
			if a < -1 || a >= MaxAlleles {
				return nil, &EncodingError{Index: i, Reason: fmt.Sprintf("allele index %d out of range [0,%d)", a, MaxAlleles)}
			}
		}
		if g.Phased {
			if len(g.GT) == 0 {
				return nil, &EncodingError{Index: i, Reason: "phased call has no GT"}
			}
			flags |= flagPhased
		}
		if g.DP < -1 || g.GQ < -1 {
			return nil, &EncodingError{Index: i, Reason: fmt.Sprintf("DP %d, GQ %d: expected -1 (missing) or a non-negative value", g.DP, g.GQ)}
		}
		if g.AD != nil {
			flags |= flagAD
		}
		if g.DP >= 0 {
			flags |= flagDP
		}
		if g.GQ >= 0 {
			flags |= flagGQ
		}
		if g.PL != nil {
			flags |= flagPL
		}
		for _, xs := range [][]int{g.AD, g.PL} {
			for _, x := range xs {
				if x < 0 {
					return nil, &EncodingError{Index: i, Reason: fmt.Sprintf("negative value %d in AD/PL", x)}
				}
			}
		}
		dst = append(dst, flags)
		for _, a := range g.GT {
			dst = append(dst, byte(a+1))
		}
		if flags&flagAD != 0 {
			putInts(g.AD)
		}
		if flags&flagDP != 0 {
			putInt(g.DP)
		}
		if flags&flagGQ != 0 {
			putInt(g.GQ)
		}
		if flags&flagPL != 0 {
			putInts(g.PL)
		}
	}
	return dst, nil
}

func (run GenotypeRun) raw() ([]byte, error) {
	if !run.Compressed {
		return run.Data, nil
	}
	return s2.Decode(nil, run.Data)
}

// Iter returns a new iterator positioned before the first call. Each
// call to Iter starts over from the beginning of the run.
func (run GenotypeRun) Iter() *GenotypeIter {
	buf, err := run.raw()
	return &GenotypeIter{buf: buf, remain: run.N, err: err}
}

// Decode returns all calls in the run.
func (run GenotypeRun) Decode() ([]Genotype, error) {
	out := make([]Genotype, 0, run.N)
	it := run.Iter()
	for it.Next() {
		out = append(out, it.Genotype())
	}
	return out, it.Err()
}

// Dosages returns the number of non-reference alleles of each call,
// with NaN for missing calls. dst is reused if it has enough
// capacity.
func (run GenotypeRun) Dosages(dst []float64) ([]float64, error) {
	if cap(dst) < run.N {
		dst = make([]float64, run.N)
	}
	dst = dst[:run.N]
	buf, err := run.raw()
	if err != nil {
		return nil, err
	}
	d := decoder{buf: buf}
	for i := range dst {
		n, err := d.skipToDosage()
		if err != nil {
			return nil, err
		}
		if n < 0 {
			dst[i] = math.NaN()
		} else {
			dst[i] = float64(n)
		}
	}
	return dst, nil
}

// GenotypeIter iterates over the calls in a GenotypeRun.
type GenotypeIter struct {
	buf    []byte
	pos    int
	remain int
	cur    Genotype
	err    error
}

// Next advances to the next call, returning false at the end of the
// run or on error.
func (it *GenotypeIter) Next() bool {
	if it.err != nil || it.remain == 0 {
		return false
	}
	d := decoder{buf: it.buf, pos: it.pos}
	it.cur, it.err = d.next()
	it.pos = d.pos
	it.remain--
	return it.err == nil
}

// Genotype returns the current call.
func (it *GenotypeIter) Genotype() Genotype { return it.cur }

// Err returns the first decoding error, if any.
func (it *GenotypeIter) Err() error { return it.err }

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) readByte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, errTruncatedRun
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) readInt() (int, error) {
	x, n := binary.Uvarint(d.buf[d.pos:])
	if n <= 0 {
		return 0, errTruncatedRun
	}
	d.pos += n
	return int(x), nil
}

func (d *decoder) readInts() ([]int, error) {
	n, err := d.readInt()
	if err != nil {
		return nil, err
	}
	if n > len(d.buf)-d.pos {
		return nil, errTruncatedRun
	}
	xs := make([]int, n)
	for i := range xs {
		xs[i], err = d.readInt()
		if err != nil {
			return nil, err
		}
	}
	return xs, nil
}

func (d *decoder) alleles(flags byte) ([]int, error) {
	if flags&flagGT == 0 {
		return nil, nil
	}
	ploidy := 2
	if flags&flagHaploid != 0 {
		ploidy = 1
	}
	gt := make([]int, ploidy)
	for i := range gt {
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}
		gt[i] = int(b) - 1
	}
	return gt, nil
}

func (d *decoder) next() (g Genotype, err error) {
	g = MissingGenotype
	flags, err := d.readByte()
	if err != nil {
		return
	}
	if g.GT, err = d.alleles(flags); err != nil {
		return
	}
	g.Phased = flags&flagPhased != 0
	if flags&flagAD != 0 {
		if g.AD, err = d.readInts(); err != nil {
			return
		}
	}
	if flags&flagDP != 0 {
		if g.DP, err = d.readInt(); err != nil {
			return
		}
	}
	if flags&flagGQ != 0 {
		if g.GQ, err = d.readInt(); err != nil {
			return
		}
	}
	if flags&flagPL != 0 {
		if g.PL, err = d.readInts(); err != nil {
			return
		}
	}
	return
}

// skipToDosage decodes just enough of the next call to count its
// non-reference alleles (-1 if missing), and skips the rest.
func (d *decoder) skipToDosage() (int, error) {
	flags, err := d.readByte()
	if err != nil {
		return 0, err
	}
	n := -1
	if flags&flagGT != 0 {
		ploidy := 2
		if flags&flagHaploid != 0 {
			ploidy = 1
		}
		n = 0
		for i := 0; i < ploidy; i++ {
			b, err := d.readByte()
			if err != nil {
				return 0, err
			}
			if b == 0 {
				n = -1
			} else if b > 1 && n >= 0 {
				n++
			}
		}
	}
	if flags&flagAD != 0 {
		if _, err := d.readInts(); err != nil {
			return 0, err
		}
	}
	for _, f := range []byte{flagDP, flagGQ} {
		if flags&f != 0 {
			if _, err := d.readInt(); err != nil {
				return 0, err
			}
		}
	}
	if flags&flagPL != 0 {
		if _, err := d.readInts(); err != nil {
			return 0, err
		}
	}
	return n, nil
}
