// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/check.v1"
)

type pipelineSuite struct{}

var _ = check.Suite(&pipelineSuite{})

func (s *pipelineSuite) TestSimulateLinreg(c *check.C) {
	tmpdir := c.MkDir()
	vcf := filepath.Join(tmpdir, "sim.vcf")
	pheno := filepath.Join(tmpdir, "pheno.tsv")
	code := (&simulatecmd{}).RunCommand("vds simulate", []string{"-samples=40", "-variants=30", "-populations=2", "-seed=3", "-o", vcf, "-samples-out", pheno}, bytes.NewReader(nil), &bytes.Buffer{}, os.Stderr)
	c.Assert(code, check.Equals, 0)

	regions := filepath.Join(tmpdir, "regions.bed")
	c.Assert(os.WriteFile(regions, []byte("1\t999\t2000\n"), 0666), check.IsNil)

	for _, trial := range []struct {
		cmd     string
		args    []string
		columns string
	}{
		{"linreg", []string{"-y", "sa.pheno", "-covariates", "sa.pop", "-samples-types", "pop:Double,isCase:Int"}, "beta\tse\ttstat\tpval"},
		{"linreg", []string{"-y", "pheno", "-pca-components", "2", "-regions", regions}, "beta\tse\ttstat\tpval"},
		{"logreg", []string{"-y", "sa.isCase", "-threads", "2", "-compress"}, "beta\tchi2\tpval"},
		{"chisq", []string{"-y", "sa.isCase", "-min-ac", "1"}, "chi2\tpval"},
	} {
		c.Logf("%s %q", trial.cmd, trial.args)
		args := append([]string{trial.cmd, "-samples", pheno, "-loglevel", "warn"}, trial.args...)
		args = append(args, vcf)
		var stdout, stderr bytes.Buffer
		code := handler.RunCommand("vds", args, bytes.NewReader(nil), &stdout, &stderr)
		c.Check(code, check.Equals, 0, check.Commentf("%s", stderr.String()))
		lines := strings.Split(strings.TrimSuffix(stdout.String(), "\n"), "\n")
		c.Assert(lines, check.HasLen, 31)
		c.Check(lines[0], check.Equals, "chrom\tpos\tref\talt\t"+trial.columns)
		c.Check(strings.HasPrefix(lines[1], "1\t1000\t"), check.Equals, true)
		ncols := strings.Count(lines[0], "\t") + 1
		for _, line := range lines[1:] {
			c.Check(strings.Count(line, "\t")+1, check.Equals, ncols)
		}
	}
}

func (s *pipelineSuite) TestPipe(c *check.C) {
	var wg sync.WaitGroup
	linregin, simout := io.Pipe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		code := (&simulatecmd{}).RunCommand("vds simulate", []string{"-samples=10", "-variants=5"}, bytes.NewReader(nil), simout, os.Stderr)
		c.Check(code, check.Equals, 0)
		simout.Close()
	}()
	vcf := filepath.Join(c.MkDir(), "piped.vcf")
	buf, err := io.ReadAll(linregin)
	c.Assert(err, check.IsNil)
	wg.Wait()
	c.Assert(os.WriteFile(vcf, buf, 0666), check.IsNil)
	m, err := LoadVCF(context.Background(), vcf, ImportOptions{})
	c.Check(err, check.IsNil)
	c.Check(m.NumVariants(), check.Equals, 5)
}

func (s *pipelineSuite) TestUsageErrors(c *check.C) {
	for _, trial := range []struct {
		args   []string
		code   int
		stderr string
	}{
		{[]string{"linreg", "-help"}, 0, ""},
		{[]string{"linreg", "-y", "sa.pheno"}, 2, "usage: "},
		{[]string{"linreg", "x.vcf"}, 2, "response annotation (-y) not specified"},
		{[]string{"linreg", "-no-such-flag", "x.vcf"}, 2, "flag provided but not defined"},
		{[]string{"linreg", "-y", "sa.pheno", "-loglevel", "loud", "x.vcf"}, 2, "not a valid logrus Level"},
		{[]string{"linreg", "-y", "sa.pheno", "x.txt"}, 1, "unsupported file type"},
		{[]string{"linreg", "-y", "sa.pheno", "-samples-types", "age", "x.vcf"}, 2, `invalid column type "age"`},
		{[]string{"linreg", "-y", "sa.pheno", "-samples-types", "age:Complex", "x.vcf"}, 2, `column age: unknown type "Complex"`},
		{[]string{"simulate", "-samples=0"}, 1, "invalid size"},
		{[]string{"simulate", "extra"}, 2, "unexpected arguments"},
	} {
		var stdout, stderr bytes.Buffer
		code := handler.RunCommand("vds", trial.args, bytes.NewReader(nil), &stdout, &stderr)
		c.Check(code, check.Equals, trial.code, check.Commentf("%q: %s", trial.args, stderr.String()))
		c.Check(strings.Contains(stderr.String(), trial.stderr), check.Equals, true, check.Commentf("%q: %s", trial.args, stderr.String()))
	}
}

func (s *pipelineSuite) TestConfigFromEnv(c *check.C) {
	os.Setenv("VDS_THREADS", "3")
	os.Setenv("VDS_COMPRESS", "true")
	defer os.Unsetenv("VDS_THREADS")
	defer os.Unsetenv("VDS_COMPRESS")
	cfg, err := LoadConfig()
	c.Assert(err, check.IsNil)
	c.Check(cfg.Threads, check.Equals, 3)
	c.Check(cfg.Compress, check.Equals, true)
	c.Check(cfg.LogLevel, check.Equals, "info")

	os.Setenv("VDS_THREADS", "many")
	_, err = LoadConfig()
	c.Check(err, check.NotNil)
}
