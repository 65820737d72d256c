// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// ImportOptions control how VCF files are loaded.
type ImportOptions struct {
	// Compress genotype runs in memory.
	Compress bool
	// Partitions is the desired number of partitions per input
	// file. The actual number depends on the file size. Zero means
	// use a default partition size.
	Partitions int
	// Threads is the maximum number of partitions parsed
	// concurrently. Zero means GOMAXPROCS.
	Threads int
	// StoreGQ stores the GQ field as given, instead of computing
	// it from PL.
	StoreGQ bool
	// SkipBadAD drops AD fields with the wrong number of elements,
	// instead of dropping the entire call.
	SkipBadAD bool
	// SitesOnly loads variants and variant annotations, but no
	// samples or genotypes.
	SitesOnly bool
	// PPAsPL stores the PP field in place of PL.
	PPAsPL bool
	// HeaderFile, if given, is read for the header instead of
	// the input files' own headers.
	HeaderFile string
}

const defaultPartitionBytes = 32 << 20

// LoadVCF loads a .vcf, .vcf.gz, or .vcf.bgz file.
//
// If any line cannot be parsed, the load is aborted and the returned
// error is a *FormatError indicating the offending line.
func LoadVCF(ctx context.Context, path string, opts ImportOptions) (*Matrix, error) {
	return LoadVCFs(ctx, []string{path}, opts)
}

// LoadVCFs loads multiple VCF files with identical sample lists into
// a single Matrix. Partitions appear in the order of the given paths.
func LoadVCFs(ctx context.Context, paths []string, opts ImportOptions) (*Matrix, error) {
	if len(paths) == 0 {
		return nil, errors.New("no input files")
	}
	for _, path := range paths {
		if err := checkVCFName(path); err != nil {
			return nil, err
		}
	}
	if opts.Threads < 1 {
		opts.Threads = runtime.GOMAXPROCS(0)
	}
	if opts.Partitions > 0 {
		opts.Partitions = (opts.Partitions + len(paths) - 1) / len(paths)
	}

	var hdr *vcfHeader
	if opts.HeaderFile != "" {
		var err error
		hdr, err = loadHeader(opts.HeaderFile)
		if err != nil {
			return nil, err
		}
	}
	starttime := time.Now()
	m := &Matrix{}
	for _, path := range paths {
		parts, fh, err := loadVCFFile(ctx, path, hdr, paths[0], opts)
		if err != nil {
			return nil, err
		}
		if hdr == nil {
			hdr = fh
		}
		m.Partitions = append(m.Partitions, parts...)
	}

	m.Filters = hdr.filters
	m.VariantSignature = hdr.sig
	m.SampleSignature = Struct()
	m.Global = Annotations{}
	if !opts.SitesOnly {
		m.SampleIDs = hdr.samples
		m.SampleAnnotations = make([]Annotations, len(hdr.samples))
		for i := range m.SampleAnnotations {
			m.SampleAnnotations[i] = Annotations{}
		}
	}
	log.Infof("loaded %d variants, %d samples, %d partitions from %d file(s) in %v", m.NumVariants(), m.NumSamples(), len(m.Partitions), len(paths), time.Since(starttime).Round(time.Millisecond))
	return m, nil
}

// vcfChunk is a run of consecutive body lines, parsed into one
// partition.
type vcfChunk struct {
	lines      []string
	linenos    []int
	part       *Partition
	undeclared map[string]int
}

// loadVCFFile parses one file into partitions.
//
// Unless opts.HeaderFile is set, the file's own header is read and
// returned. If hdr is non-nil, the file's sample IDs must match those
// of hdr (which was read from hdrPath), and body lines are parsed
// with hdr.
func loadVCFFile(ctx context.Context, path string, hdr *vcfHeader, hdrPath string, opts ImportOptions) ([]*Partition, *vcfHeader, error) {
	f, err := zopen(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	rdr := bufio.NewReaderSize(f, 4*1024*1024)

	lineno := 0
	var fh *vcfHeader
	if opts.HeaderFile == "" {
		text, n, err := readHeaderLines(path, rdr)
		if err != nil {
			return nil, nil, err
		}
		fh, err = parseHeader(path, text, n)
		if err != nil {
			return nil, nil, err
		}
		lineno = n
		if hdr == nil {
			hdr = fh
		} else if fh.digest != hdr.digest {
			return nil, nil, &FormatError{Path: path, Reason: fmt.Sprintf("sample IDs differ from %s", hdrPath)}
		}
	} else {
		for {
			if b, err := rdr.Peek(1); err != nil || b[0] != '#' {
				break
			}
			if _, err := rdr.ReadString('\n'); err != nil {
				break
			}
			lineno++
		}
	}

	chunkBytes := defaultPartitionBytes
	if opts.Partitions > 0 {
		if fi, err := os.Stat(path); err == nil {
			size := fi.Size()
			if !strings.HasSuffix(path, ".vcf") {
				// guess the uncompressed size
				size *= 4
			}
			chunkBytes = int(size / int64(opts.Partitions))
		}
		if chunkBytes < 1 {
			chunkBytes = 1
		}
	}
	width := len(hdr.samples)
	if opts.SitesOnly {
		width = 0
	}

	throttle := throttle{Max: opts.Threads}
	var chunks []*vcfChunk
	parse := func(chunk *vcfChunk) func() error {
		return func() error {
			rp := newRecordParser(hdr, opts)
			b := newPartitionBuilder(width, opts.Compress, len(chunk.lines))
			for i, line := range chunk.lines {
				v, va, calls, err := rp.Parse(line)
				if err != nil {
					return &FormatError{Path: path, Line: chunk.linenos[i], Reason: err.Error()}
				}
				if err = b.Add(v, va, calls); err != nil {
					return &FormatError{Path: path, Line: chunk.linenos[i], Reason: err.Error()}
				}
			}
			chunk.part = b.Partition()
			chunk.undeclared = rp.undeclared
			log.Debugf("%s: parsed partition with %d variants starting at line %d", path, chunk.part.Len(), chunk.linenos[0])
			chunk.lines, chunk.linenos = nil, nil
			return nil
		}
	}

	chunk := &vcfChunk{}
	size := 0
	for {
		if throttle.Err() != nil {
			break
		}
		if err := ctx.Err(); err != nil {
			throttle.Report(err)
			break
		}
		line, err := rdr.ReadString('\n')
		if len(line) > 0 {
			lineno++
			switch {
			case strings.TrimSpace(line) == "":
			case line[0] == '#':
				err = &FormatError{Path: path, Line: lineno, Reason: "header line after #CHROM"}
			default:
				chunk.lines = append(chunk.lines, line)
				chunk.linenos = append(chunk.linenos, lineno)
				size += len(line)
			}
		}
		if err == io.EOF {
			break
		} else if ferr, ok := err.(*FormatError); ok {
			throttle.Report(ferr)
			break
		} else if err != nil {
			throttle.Report(fmt.Errorf("%s: %w", path, err))
			break
		}
		if size >= chunkBytes {
			chunks = append(chunks, chunk)
			throttle.GoContext(ctx, parse(chunk))
			chunk = &vcfChunk{}
			size = 0
		}
	}
	if len(chunk.lines) > 0 && throttle.Err() == nil {
		chunks = append(chunks, chunk)
		throttle.GoContext(ctx, parse(chunk))
	}
	if err := throttle.Wait(); err != nil {
		return nil, nil, err
	}

	parts := make([]*Partition, 0, len(chunks))
	undeclared := map[string]int{}
	for _, chunk := range chunks {
		if chunk.part.Len() > 0 {
			parts = append(parts, chunk.part)
		}
		for k, n := range chunk.undeclared {
			undeclared[k] += n
		}
	}
	if len(undeclared) > 0 {
		var keys []string
		for k := range undeclared {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		log.Warnf("%s: dropped values of INFO fields not declared in header: %s", path, strings.Join(keys, ", "))
	}
	return parts, fh, nil
}
