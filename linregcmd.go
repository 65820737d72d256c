// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

// regressioncmd loads VCF files and a sample table, runs an
// association test (linear or logistic regression, or carrier
// chi-square test), and prints one line per variant.
type regressioncmd struct {
	model string // "linear", "logistic", or "carrier"
}

func (cmd *regressioncmd) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	cfg, err := LoadConfig()
	if err != nil {
		return 2
	}
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "usage: %s [options] file.vcf[.gz] [...]\n", prog)
		flags.PrintDefaults()
	}
	setup := commonFlags(flags, cfg)
	samplesFilename := flags.String("samples", "", "sample annotation table `file` (tab-separated, with header)")
	samplesKey := flags.String("samples-key", "", "sample ID `column` in sample table (default first column)")
	samplesRoot := flags.String("samples-root", "sa", "annotation `path` for sample table columns")
	samplesTypes := flags.String("samples-types", "", "comma-separated column:type `list` overriding imputed sample table types, e.g., age:Int,sex:String")
	response := flags.String("y", "", "response (phenotype) annotation `path`, e.g., sa.height")
	covariates := flags.String("covariates", "", "comma-separated covariate annotation `paths`")
	pcaComponents := flags.Int("pca-components", 0, "add `N` principal components (sa.pca.PC1...) as covariates")
	regionsFilename := flags.String("regions", "", "only test variants that intersect regions in specified bed `file`")
	expandRegions := flags.Int("expand-regions", 0, "expand specified regions by `N` base pairs on each side`")
	minAC := flags.Int("min-ac", 0, "minimum alternate allele count")
	minAF := flags.Float64("min-af", 0, "minimum alternate allele frequency")
	threads := flags.Int("threads", cfg.Threads, "maximum `number` of partitions to process concurrently (0 = number of CPUs)")
	partitions := flags.Int("partitions", cfg.Partitions, "desired `number` of partitions")
	compress := flags.Bool("compress", cfg.Compress, "compress genotypes in memory")
	skipBadAD := flags.Bool("skip-bad-ad", false, "drop malformed AD fields instead of whole genotype calls")
	storeGQ := flags.Bool("store-gq", false, "store GQ as given instead of computing it from PL")
	headerFile := flags.String("header-file", "", "read VCF header from `file` instead of input files")
	outputFilename := flags.String("o", "-", "output `file`")
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() == 0 {
		flags.Usage()
		return 2
	} else if *response == "" {
		err = errors.New("response annotation (-y) not specified")
		return 2
	}
	if err = setup(); err != nil {
		return 2
	}
	types, err := ParseTableTypes(*samplesTypes)
	if err != nil {
		return 2
	}

	ctx := context.Background()
	m, err := LoadVCFs(ctx, flags.Args(), ImportOptions{
		Compress:   *compress,
		Partitions: *partitions,
		Threads:    *threads,
		StoreGQ:    *storeGQ,
		SkipBadAD:  *skipBadAD,
		HeaderFile: *headerFile,
	})
	if err != nil {
		return 1
	}
	if *samplesFilename != "" {
		m, err = LoadSampleTable(m, *samplesFilename, TableConfig{
			Key:    *samplesKey,
			Root:   *samplesRoot,
			Impute: true,
			Types:  types,
		})
		if err != nil {
			return 1
		}
	}
	var covs []string
	if *covariates != "" {
		covs = strings.Split(*covariates, ",")
	}
	if *pcaComponents > 0 {
		m, err = PCA(ctx, m, *pcaComponents, "sa.pca", *threads)
		if err != nil {
			return 1
		}
		for i := 1; i <= *pcaComponents; i++ {
			covs = append(covs, fmt.Sprintf("sa.pca.PC%d", i))
		}
	}
	var regions *RegionMask
	if *regionsFilename != "" {
		log.Printf("loading regions from %s", *regionsFilename)
		regions, err = LoadRegions(*regionsFilename, *expandRegions)
		if err != nil {
			return 1
		}
		log.Printf("loaded %d intervals", regions.Len())
	}

	var root string
	var columns []string
	switch cmd.model {
	case "carrier":
		if len(covs) > 0 {
			log.Warn("carrier test does not use covariates; ignoring -covariates and -pca-components")
		}
		root, columns = "carrier", []string{"chi2", "pval"}
		m, err = CarrierTest(ctx, m, CarrierTestOptions{
			Response: *response,
			Root:     "va." + root,
			Threads:  *threads,
			MinAC:    *minAC,
			MinAF:    *minAF,
			Regions:  regions,
		})
	case "logistic":
		root, columns = "logreg", []string{"beta", "chi2", "pval"}
		m, err = LogisticRegression(ctx, m, LogRegOptions{
			Response:   *response,
			Covariates: covs,
			Root:       "va." + root,
			Threads:    *threads,
			MinAC:      *minAC,
			MinAF:      *minAF,
			Regions:    regions,
		})
	default:
		root, columns = "linreg", []string{"beta", "se", "tstat", "pval"}
		m, err = LinearRegression(ctx, m, LinRegOptions{
			Response:   *response,
			Covariates: covs,
			Root:       "va." + root,
			Threads:    *threads,
			MinAC:      *minAC,
			MinAF:      *minAF,
			Regions:    regions,
		})
	}
	if err != nil {
		return 1
	}

	output, err := createOutput(*outputFilename, stdout)
	if err != nil {
		return 1
	}
	defer output.Close()
	bufw := bufio.NewWriter(output)
	err = writeReport(bufw, m, root, columns)
	if err != nil {
		return 1
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}

// writeReport writes one tab-separated line per variant with the
// given fields of the variant annotation at root, or NA where there
// is no value.
func writeReport(w io.Writer, m *Matrix, root string, columns []string) error {
	_, err := fmt.Fprintf(w, "chrom\tpos\tref\talt\t%s\n", strings.Join(columns, "\t"))
	if err != nil {
		return err
	}
	return m.EachRecord(func(_, _ int, r Record) error {
		v := r.Variant
		line := fmt.Sprintf("%s\t%d\t%s\t%s", v.Contig, v.Start, v.Ref, v.Alt)
		for _, col := range columns {
			if x, ok := r.Annotations.Get(root, col); ok {
				line += fmt.Sprintf("\t%g", x)
			} else {
				line += "\tNA"
			}
		}
		_, err := fmt.Fprintln(w, line)
		return err
	})
}
