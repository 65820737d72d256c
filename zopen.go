// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
)

var vcfSuffixes = []string{".vcf", ".vcf.gz", ".vcf.bgz"}

// checkVCFName returns a *FormatError if path does not have one of
// the supported VCF filename suffixes.
func checkVCFName(path string) error {
	for _, sfx := range vcfSuffixes {
		if strings.HasSuffix(path, sfx) {
			return nil
		}
	}
	return &FormatError{Path: path, Reason: "unsupported file type (expected .vcf, .vcf.gz, or .vcf.bgz)"}
}

// zopen opens fnm, decompressing on the fly if its name ends in .gz
// or .bgz. BGZF files are concatenated gzip members, which pgzip
// reads transparently.
func zopen(fnm string) (io.ReadCloser, error) {
	f, err := os.Open(fnm)
	if err != nil || !(strings.HasSuffix(fnm, ".gz") || strings.HasSuffix(fnm, ".bgz")) {
		return f, err
	}
	rdr, err := pgzip.NewReader(bufio.NewReaderSize(f, 4*1024*1024))
	if err != nil {
		f.Close()
		return nil, err
	}
	return gzipr{rdr, f}, nil
}

// gzipr wraps a ReadCloser and a Closer, presenting a single Close()
// method that closes both wrapped objects.
type gzipr struct {
	io.ReadCloser
	io.Closer
}

func (gr gzipr) Close() error {
	e1 := gr.ReadCloser.Close()
	e2 := gr.Closer.Close()
	if e1 != nil {
		return e1
	}
	return e2
}
