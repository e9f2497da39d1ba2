package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	configs "github.com/opst/weft/pkg/configs/backend"
	"github.com/opst/weft/pkg/domain"
	"github.com/opst/weft/pkg/domain/weft"
	"github.com/opst/weft/pkg/utils/args"
	"github.com/opst/weft/pkg/utils/filewatch"
	"github.com/opst/weft/pkg/utils/strings"
	"github.com/opst/weft/pkg/utils/try"

	"github.com/opst/weft/cmd/agent/recurring"
)

func main() {
	logger := log.Default()
	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM,
	)
	// call cancel() when this function exits
	defer cancel()

	// define command line flags
	//-- path to config file
	pconfig := flag.String(
		"config", os.Getenv("WEFT_BACKEND_CONFIG"), "path to config file",
	)
	//-- which agent role to run
	role := args.Parser(domain.AsAgentRole)
	flag.Var(role, "role", "one of agent role (clerk|transformer|carrier|conductor|archiver)")
	//-- loop policy
	policy := args.Parser(recurring.ParsePolicy)
	flag.Var(
		policy, "policy",
		`loop policy (syntax: forever[:COOLDOWN]|backlog).`+
			` "forever[:COOLDOWN]" = run forever until error. When backlog is over, `+
			`wait COOLDOWN (optional duration. default: 0) as interval.`+
			` "backlog" = run until error or backlog is over.`,
	)
	// parse command line flags
	flag.Parse()

	if !role.IsSet() {
		logger.Fatal("flag -role is required")
	}
	if !policy.IsSet() {
		logger.Fatal("flag -policy is required")
	}

	{
		// restart (via the process supervisor) on config change
		wctx, cancel, err := filewatch.UntilModifyContext(ctx, *pconfig)
		if err != nil {
			logger.Fatal(err)
		}
		defer cancel()
		ctx = wctx
	}

	conf := try.To(configs.LoadBackendConfig(*pconfig)).OrFatal(logger)

	w := try.To(weft.Default(ctx, conf.Cluster())).OrFatal(logger)
	defer w.Close()

	// lock owner tag of this process, unique enough to tell agents apart
	// in the store's lock columns.
	hostname := try.To(os.Hostname()).OrFatal(logger)
	owner := fmt.Sprintf(
		"%s:%d:%s", hostname, os.Getpid(),
		try.To(strings.RandomHex(4)).OrFatal(logger),
	)

	logger.Printf(
		`start agent "%s" /w policy "%s" as "%s"`,
		role.Value().String(), policy.Value().String(), owner,
	)

	err := StartLoop(
		ctx, logger, w, owner,
		LoopManifest{
			Role:   role.Value(),
			Policy: recurring.UntilError(policy.Value()),
		},
	)

	if err == nil {
		return
	} else if errors.Is(err, context.Canceled) {
		logger.Fatal(err, "(loop context is cancelled by:", context.Cause(ctx), ")")
	}

	logger.Fatal(err)
}
