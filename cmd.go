// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package vds

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	_ "net/http/pprof"
	"os"

	"git.arvados.org/arvados.git/lib/cmd"
	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
)

var (
	handler = cmd.Multi(map[string]cmd.Handler{
		"version":   cmd.Version,
		"-version":  cmd.Version,
		"--version": cmd.Version,

		"linreg":   &regressioncmd{model: "linear"},
		"logreg":   &regressioncmd{model: "logistic"},
		"chisq":    &regressioncmd{model: "carrier"},
		"simulate": &simulatecmd{},
	})
)

func Main() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		log.StandardLogger().Formatter = &log.TextFormatter{DisableTimestamp: true}
	}
	os.Exit(handler.RunCommand(os.Args[0], os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// commonFlags adds the flags shared by all commands, with defaults
// from cfg, and returns a function that applies them after parsing.
func commonFlags(flags *flag.FlagSet, cfg Config) func() error {
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	loglevel := flags.String("loglevel", cfg.LogLevel, "logging threshold (trace, debug, info, warn, error, fatal, or panic)")
	return func() error {
		if *pprof != "" {
			go func() {
				log.Println(http.ListenAndServe(*pprof, nil))
			}()
		}
		lvl, err := log.ParseLevel(*loglevel)
		if err != nil {
			return err
		}
		log.SetLevel(lvl)
		return nil
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// createOutput opens the named output file, or returns stdout if
// fnm is "-".
func createOutput(fnm string, stdout io.Writer) (io.WriteCloser, error) {
	if fnm == "-" {
		return nopCloser{stdout}, nil
	}
	f, err := os.OpenFile(fnm, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fnm, err)
	}
	return f, nil
}
