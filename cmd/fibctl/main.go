// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// fibctl is the administrative CLI for the FIB path engine: "show fib
// paths [index]" inspects the resolved state of one or every path in
// the pool, and "module-init" constructs an Engine from a config file
// the way module_init seeds the real FIB at startup. Every command
// runs behind an operator identity and a permission check, the same
// shape the teacher's MySQL-session auth took for every query.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	fibpath "github.com/vrouter/fibpath"
	"github.com/vrouter/fibpath/auth"
	"github.com/vrouter/fibpath/internal/telemetry"
	"github.com/vrouter/fibpath/path"
)

func main() {
	operator := flag.String("operator", os.Getenv("FIBCTL_OPERATOR"), "operator name")
	password := flag.String("password", os.Getenv("FIBCTL_PASSWORD"), "operator password")
	userFile := flag.String("user-file", "", "JSON operator credential file (native auth); omitted means no-auth")
	configFile := flag.String("config", "", "YAML module config file; omitted means config.Default()")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	base, err := buildAuth(*userFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fibctl:", err)
		os.Exit(1)
	}
	auditMethod := auth.NewAuditLog(telemetry.New(logrus.InfoLevel))

	if n, ok := base.(interface {
		Authenticate(operator, password string) error
	}); ok {
		authErr := n.Authenticate(*operator, *password)
		auditMethod.Authentication(*operator, "local", authErr)
		if authErr != nil {
			fmt.Fprintln(os.Stderr, "fibctl: authentication failed:", authErr)
			os.Exit(1)
		}
	}

	a := auth.NewAudit(base, auditMethod)
	req := auth.Request{Operator: *operator, Address: "local", Command: commandName(args)}

	start := time.Now()
	runErr := dispatch(args, req, a, *configFile)
	auditMethod.Command(req, time.Since(start), runErr)
	if runErr != nil {
		fmt.Fprintln(os.Stderr, "fibctl:", runErr)
		os.Exit(1)
	}
}

func commandName(args []string) string {
	if len(args) >= 3 && args[0] == "show" && args[1] == "fib" && args[2] == "paths" {
		return "show"
	}
	return args[0]
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  fibctl show fib paths [index]")
	fmt.Fprintln(os.Stderr, "  fibctl module-init")
}

func buildAuth(userFile string) (auth.Auth, error) {
	if userFile == "" {
		return &auth.None{}, nil
	}
	return auth.NewNativeFile(userFile)
}

func dispatch(args []string, req auth.Request, a auth.Auth, configFile string) error {
	switch {
	case len(args) >= 3 && args[0] == "show" && args[1] == "fib" && args[2] == "paths":
		if err := a.Allowed(req, auth.ReadPerm); err != nil {
			return err
		}
		return runShowPaths(args[3:], configFile)
	case args[0] == "module-init":
		if err := a.Allowed(req, auth.WritePerm); err != nil {
			return err
		}
		return runModuleInit(configFile)
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runModuleInit(configFile string) error {
	var (
		e   *fibpath.Engine
		err error
	)
	if configFile == "" {
		e, err = fibpath.NewDefault()
	} else {
		e, err = fibpath.NewFromFile(configFile)
	}
	if err != nil {
		return err
	}
	defer e.Close()

	fmt.Printf("module-init ok: default_chain_type=%d rr_source_ordinal=%d table_namespaces=%d\n",
		e.Module.DefaultChainType, e.Module.RRSourceOrdinal, len(e.Module.TableNamespaces))
	return nil
}

func runShowPaths(rest []string, configFile string) error {
	var (
		e   *fibpath.Engine
		err error
	)
	if configFile == "" {
		e, err = fibpath.NewDefault()
	} else {
		e, err = fibpath.NewFromFile(configFile)
	}
	if err != nil {
		return err
	}
	defer e.Close()

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tKIND\tPROTO\tRESOLVED\tDPO\tWEIGHT")

	printPath := func(idx path.Index) {
		pth, ok := e.Paths.Get(idx)
		if !ok {
			fmt.Fprintf(w, "%d\tunknown\t\t\t\t\n", idx)
			return
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\t%d\n",
			pth.Index(), pth.Kind(), pth.Proto(), pth.IsResolved(),
			pth.ContributedDPO(), pth.Weight())
	}

	if len(rest) == 1 {
		n, err := strconv.ParseUint(rest[0], 10, 32)
		if err != nil {
			return fmt.Errorf("bad path index %q: %w", rest[0], err)
		}
		printPath(path.Index(n))
	} else {
		for _, idx := range e.Paths.Indices() {
			printPath(idx)
		}
	}

	return w.Flush()
}
